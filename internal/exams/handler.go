package exams

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"examscan-backend/internal/history"
	"examscan-backend/internal/session"
	"examscan-backend/internal/shared/server/respond"
	"examscan-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64

	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{
		Svc:            svc,
		MaxUploadBytes: maxUploadBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS middleware already gates browser origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes attaches batch and history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.create)
	rg.GET("/batches/:id", h.status)
	rg.GET("/batches/:id/events", h.events)
	rg.GET("/batches/:id/questions/:qid/image", h.image)
	rg.POST("/batches/:id/start", h.start)
	rg.POST("/batches/:id/answers", h.answer)
	rg.POST("/batches/:id/advance", h.advance)
	rg.POST("/batches/:id/finalize", h.finalize)
	rg.POST("/batches/:id/cancel", h.cancel)
	rg.GET("/history", h.historyList)
	rg.DELETE("/history", h.historyClear)
}

// eligible keeps inputs the pipeline can analyze. Everything else in the
// upload is skipped silently, mirroring a user pointing the tool at a mixed
// folder.
func eligible(name, mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "image/png", "image/jpeg", "image/webp", "application/pdf":
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".pdf":
		return true
	}
	return false
}

func (h *Handler) create(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	uploads := make([]Upload, 0, len(files))
	for _, fh := range files {
		mimeType := fh.Header.Get("Content-Type")
		if !eligible(fh.Filename, mimeType) {
			telemetry.Info("exams.upload_skipped", map[string]any{
				"file": fh.Filename,
				"mime": mimeType,
			})
			continue
		}
		content, err := readUpload(fh)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		uploads = append(uploads, Upload{Name: fh.Filename, MimeType: mimeType, Content: content})
	}
	// The service tolerates an empty list, but a browser upload where every
	// file was filtered out deserves an explicit rejection.
	if len(uploads) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no eligible files in upload", nil)
		return
	}

	batchID, err := h.Svc.CreateBatch(c.Request.Context(), uploads)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "batch_create_failed", err.Error(), nil)
		return
	}

	c.Set("batchId", batchID)
	respond.Created(c, gin.H{"batchId": batchID})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) status(c *gin.Context) {
	status, err := h.Svc.Status(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Set("batchId", c.Param("id"))
	respond.OK(c, status)
}

func (h *Handler) events(c *gin.Context) {
	feed, err := h.Svc.Feed(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		telemetry.Error("exams.ws_upgrade_failed", map[string]any{
			"batch_id": c.Param("id"),
			"error":    err.Error(),
		})
		return
	}
	feed.Register(conn)

	// Reads are discarded; the feed is one-way. The read loop exists to
	// notice the peer going away.
	go func() {
		defer feed.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) image(c *gin.Context) {
	body, mimeType, err := h.Svc.OpenImage(c.Request.Context(), c.Param("id"), c.Param("qid"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, mimeType, body, nil)
}

type startRequest struct {
	Label string `json:"label"`
}

func (h *Handler) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "label is required", nil)
		return
	}
	if err := h.Svc.Start(c.Param("id"), req.Label); err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond.OK(c, gin.H{"started": true})
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

func (h *Handler) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.QuestionID == "" || req.Option == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "questionId and option are required", nil)
		return
	}
	if err := h.Svc.Answer(c.Param("id"), req.QuestionID, req.Option); err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond.OK(c, gin.H{"recorded": true})
}

func (h *Handler) advance(c *gin.Context) {
	finished, err := h.Svc.Advance(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond.OK(c, gin.H{"finished": finished})
}

func (h *Handler) finalize(c *gin.Context) {
	entry, err := h.Svc.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond.OK(c, entry)
}

func (h *Handler) cancel(c *gin.Context) {
	if err := h.Svc.Cancel(c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	respond.OK(c, gin.H{"cancelled": true})
}

func (h *Handler) historyList(c *gin.Context) {
	entries, err := h.Svc.ListHistory(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "history_list_failed", err.Error(), nil)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	respond.OK(c, entries)
}

func (h *Handler) historyClear(c *gin.Context) {
	if err := h.Svc.ClearHistory(c.Request.Context()); err != nil {
		respond.Error(c, http.StatusInternalServerError, "history_clear_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"cleared": true})
}

func (h *Handler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
	case errors.Is(err, session.ErrUnknownQuestion):
		respond.Error(c, http.StatusNotFound, "not_found", "question not in session", nil)
	case errors.Is(err, session.ErrNoQuestions):
		respond.Error(c, http.StatusConflict, "no_questions", "no questions loaded yet", nil)
	case errors.Is(err, session.ErrNotStarted):
		respond.Error(c, http.StatusConflict, "not_started", "exam not started", nil)
	case errors.Is(err, session.ErrStillLoading):
		respond.Error(c, http.StatusConflict, "still_loading", "batch is still loading", nil)
	case errors.Is(err, session.ErrFinished):
		respond.Error(c, http.StatusConflict, "finished", "exam already finished", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}
