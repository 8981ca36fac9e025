package passage

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/voxread/voxread/internal/dto"
	"github.com/voxread/voxread/internal/shared"
)

const previewRunes = 120

type Handler struct {
	catalog *Catalog
	logger  *slog.Logger
}

func NewHandler(catalog *Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/passages", h.ListPassages)
	g.GET("/passages/:id", h.GetPassage)
}

func (h *Handler) ListPassages(c echo.Context) error {
	passages := h.catalog.List()

	summaries := make([]dto.PassageSummary, len(passages))
	for i, p := range passages {
		summaries[i] = dto.PassageSummary{
			ID:      p.ID,
			Title:   p.Title,
			Preview: preview(p.Text),
			Chars:   len(p.Text),
		}
	}

	return c.JSON(http.StatusOK, dto.PassageListResponse{Passages: summaries})
}

func (h *Handler) GetPassage(c echo.Context) error {
	id := c.Param("id")

	p, err := h.catalog.Get(id)
	if err != nil {
		return shared.NotFound("passage_not_found", "passage not found")
	}

	return c.JSON(http.StatusOK, dto.PassageResponse{
		ID:    p.ID,
		Title: p.Title,
		Text:  p.Text,
		Chars: len(p.Text),
	})
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes-3]) + "..."
}
