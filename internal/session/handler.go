package session

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/voxread/voxread/internal/dto"
	"github.com/voxread/voxread/internal/passage"
	"github.com/voxread/voxread/internal/shared"
)

type Handler struct {
	manager *Manager
	catalog *passage.Catalog
	logger  *slog.Logger
}

func NewHandler(manager *Manager, catalog *passage.Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		catalog: catalog,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions", h.StartSession)
	g.GET("/sessions/:id", h.GetSession)
	g.GET("/sessions/:id/next", h.PollNext)
	g.DELETE("/sessions/:id", h.CancelSession)
}

func (h *Handler) StartSession(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "request body must be valid JSON")
	}

	text := strings.TrimSpace(req.Text)
	if req.PassageID != "" && text != "" {
		return shared.BadRequest("ambiguous_input", "provide passage_id or text, not both")
	}

	if req.PassageID != "" {
		p, err := h.catalog.Get(req.PassageID)
		if err != nil {
			return shared.NotFound("passage_not_found", "passage not found")
		}
		text = p.Text
	}

	if text == "" {
		return shared.BadRequest("empty_input", "nothing to read: provide passage_id or text")
	}

	sess, err := h.manager.StartSession(text, req.VoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrConfiguration) {
			return shared.BadRequest("unspeakable_input", err.Error())
		}
		h.logger.Error("failed to start session", "error", err)
		return shared.InternalError("start_failed", "failed to start session")
	}

	return c.JSON(http.StatusCreated, dto.SessionResponse{
		SessionID: sess.ID(),
		State:     sess.State().String(),
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "session not found")
	}

	st := sess.Status()
	return c.JSON(http.StatusOK, dto.SessionStatusResponse{
		SessionID:         st.ID,
		State:             st.State.String(),
		ChunksSent:        st.ChunksSent,
		FragmentsReceived: st.FragmentsReceived,
		BytesReceived:     st.BytesReceived,
		ContainersEmitted: st.ContainersEmitted,
		QueueDepth:        st.QueueDepth,
	})
}

func (h *Handler) PollNext(c echo.Context) error {
	sess, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "session not found")
	}

	item, ok := sess.PollOne()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}

	resp := dto.QueueItemResponse{
		Seq:  item.Seq,
		Kind: item.Kind.String(),
	}
	if item.Kind == ItemAudio {
		resp.Audio = base64.StdEncoding.EncodeToString(item.Audio)
		resp.MimeType = item.MimeType
	}
	if item.Cause != "" {
		resp.Cause = item.Cause
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CancelSession(c echo.Context) error {
	sess, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "session not found")
	}

	sess.Cancel()

	return c.JSON(http.StatusAccepted, dto.SessionResponse{
		SessionID: sess.ID(),
		State:     sess.State().String(),
	})
}
