package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/voxread/voxread/internal/passage"
	"github.com/voxread/voxread/internal/session"
	"github.com/voxread/voxread/internal/synthesis"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
}

func ProvideSynthesisClient(cfg *Config) (*synthesis.Client, error) {
	return synthesis.New(synthesis.Config{
		Endpoint:          cfg.Cartesia.Endpoint,
		APIKey:            cfg.Cartesia.APIKey,
		Version:           cfg.Cartesia.Version,
		ModelID:           cfg.Cartesia.ModelID,
		VoiceID:           cfg.Cartesia.VoiceID,
		SampleRate:        cfg.Cartesia.SampleRate,
		Language:          cfg.Cartesia.Language,
		HandshakeTimeout:  cfg.Stream.HandshakeTimeout.Std(),
		InactivityTimeout: cfg.Stream.InactivityTimeout.Std(),
	})
}

func ProvideConnector(client *synthesis.Client) synthesis.Connector {
	return client
}

func ProvideSessionManager(lc fx.Lifecycle, connector synthesis.Connector, cfg *Config, logger *slog.Logger) *session.Manager {
	manager := session.NewManager(session.ManagerConfig{
		Connector:     connector,
		MaxChunkChars: cfg.Stream.MaxChunkChars,
		SampleRate:    cfg.Cartesia.SampleRate,
		MinBuffer:     cfg.MinBuffer(),
		Log:           logger,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close()
		},
	})
	return manager
}

func ProvidePassageCatalog() *passage.Catalog {
	return passage.NewCatalog()
}

func ProvidePassageHandler(catalog *passage.Catalog, logger *slog.Logger) *passage.Handler {
	return passage.NewHandler(catalog, logger.With("handler", "passage"))
}

func ProvideSessionHandler(manager *session.Manager, catalog *passage.Catalog, logger *slog.Logger) *session.Handler {
	return session.NewHandler(manager, catalog, logger.With("handler", "session"))
}

type HandlerParams struct {
	fx.In

	PassageHandler *passage.Handler
	SessionHandler *session.Handler
	Config         *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")
	params.PassageHandler.RegisterRoutes(api)
	params.SessionHandler.RegisterRoutes(api)

	e.Static("/", params.Config.Server.StaticDir)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSynthesisClient,
		ProvideConnector,
		ProvideSessionManager,
		ProvidePassageCatalog,
		ProvidePassageHandler,
		ProvideSessionHandler,
	),
	fx.Invoke(RegisterRoutes),
)
