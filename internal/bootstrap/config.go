package bootstrap

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/voxread/voxread/internal/shared"
)

// Duration accepts values like "30s" or "1500ms" from yaml and env.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ServerConfig struct {
	Host        string   `yaml:"host" env:"HOST"`
	Port        int      `yaml:"port" env:"PORT"`
	StaticDir   string   `yaml:"static_dir" env:"STATIC_DIR"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type CartesiaConfig struct {
	APIKey     string `yaml:"api_key" env:"CARTESIA_API_KEY"`
	Endpoint   string `yaml:"endpoint" env:"CARTESIA_ENDPOINT"`
	Version    string `yaml:"version" env:"CARTESIA_VERSION"`
	ModelID    string `yaml:"model_id" env:"CARTESIA_MODEL_ID"`
	VoiceID    string `yaml:"voice_id" env:"CARTESIA_VOICE_ID"`
	SampleRate int    `yaml:"sample_rate" env:"CARTESIA_SAMPLE_RATE"`
	Language   string `yaml:"language" env:"CARTESIA_LANGUAGE"`
}

type StreamConfig struct {
	MaxChunkChars     int      `yaml:"max_chunk_chars" env:"MAX_CHUNK_CHARS"`
	MinBufferSeconds  float64  `yaml:"min_buffer_seconds" env:"MIN_BUFFER_SECONDS"`
	InactivityTimeout Duration `yaml:"inactivity_timeout" env:"INACTIVITY_TIMEOUT"`
	HandshakeTimeout  Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Cartesia CartesiaConfig `yaml:"cartesia"`
	Stream   StreamConfig   `yaml:"stream"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			StaticDir:   "web",
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Cartesia: CartesiaConfig{
			Endpoint:   "wss://api.cartesia.ai/tts/websocket",
			Version:    "2025-04-16",
			ModelID:    "sonic-2",
			VoiceID:    "a0e99841-438c-4a64-b679-ae501e7d6091",
			SampleRate: 44100,
			Language:   "en",
		},
		Stream: StreamConfig{
			MaxChunkChars:     900,
			MinBufferSeconds:  1.0,
			InactivityTimeout: Duration(30 * time.Second),
			HandshakeTimeout:  Duration(10 * time.Second),
		},
	}
}

// LoadConfig layers defaults, an optional yaml file (path argument or
// CONFIG_PATH), and environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Cartesia.APIKey == "" {
		return fmt.Errorf("%w: cartesia.api_key is required", shared.ErrConfiguration)
	}
	if c.Cartesia.SampleRate <= 0 {
		return fmt.Errorf("%w: cartesia.sample_rate must be positive, got %d", shared.ErrConfiguration, c.Cartesia.SampleRate)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be in 1..65535, got %d", shared.ErrConfiguration, c.Server.Port)
	}
	if c.Stream.MaxChunkChars <= 0 {
		return fmt.Errorf("%w: stream.max_chunk_chars must be positive, got %d", shared.ErrConfiguration, c.Stream.MaxChunkChars)
	}
	if c.Stream.MinBufferSeconds <= 0 {
		return fmt.Errorf("%w: stream.min_buffer_seconds must be positive, got %v", shared.ErrConfiguration, c.Stream.MinBufferSeconds)
	}
	if c.Stream.InactivityTimeout <= 0 {
		return fmt.Errorf("%w: stream.inactivity_timeout must be positive", shared.ErrConfiguration)
	}
	if c.Stream.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: stream.handshake_timeout must be positive", shared.ErrConfiguration)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level must be debug, info, warn or error, got %q", shared.ErrConfiguration, c.Log.Level)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) MinBuffer() time.Duration {
	return time.Duration(c.Stream.MinBufferSeconds * float64(time.Second))
}
