package handler

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"strconv"

	"pdf-annotator/internal/annotation"
	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/session"

	"github.com/gorilla/mux"
)

// SessionManager owns the open editing sessions.
type SessionManager interface {
	Create(ctx context.Context, fileID string) (session.Snapshot, error)
	Do(id string, fn func(*session.Session) error) error
	Snapshot(id string) (session.Snapshot, error)
	Close(id string) error
}

// SessionHandler exposes the annotation engine and viewport of a session.
type SessionHandler struct {
	sessions SessionManager
	logger   domain.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager, logger domain.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type createSessionRequest struct {
	FileID string `json:"file_id"`
}

type setToolRequest struct {
	Tool     string   `json:"tool"`
	Color    *string  `json:"color,omitempty"`
	FontSize *float64 `json:"font_size,omitempty"`
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type textRequest struct {
	Value string `json:"value"`
}

type textEditRequest struct {
	Text string `json:"text"`
}

type viewportRequest struct {
	Page   *int `json:"page,omitempty"`
	Zoom   *int `json:"zoom,omitempty"`
	Rotate bool `json:"rotate,omitempty"`
}

type outcomeResponse struct {
	Committed  *domain.Annotation `json:"committed,omitempty"`
	TextPrompt bool               `json:"text_prompt"`
	TextEdit   *domain.Annotation `json:"text_edit,omitempty"`
	Editor     annotation.State   `json:"editor"`
}

type historyResponse struct {
	Changed bool             `json:"changed"`
	Editor  annotation.State `json:"editor"`
}

func toOutcome(out annotation.Outcome, state annotation.State) outcomeResponse {
	return outcomeResponse{
		Committed:  out.Committed,
		TextPrompt: out.TextPrompt,
		TextEdit:   out.TextEdit,
		Editor:     state,
	}
}

func committedOutcome(a domain.Annotation, ok bool, state annotation.State) outcomeResponse {
	resp := outcomeResponse{Editor: state}
	if ok {
		resp.Committed = &a
	}
	return resp
}

// do runs fn on the session named in the route and maps its error.
func (h *SessionHandler) do(w http.ResponseWriter, r *http.Request, msg string, fn func(*session.Session) error) bool {
	if err := h.sessions.Do(mux.Vars(r)["id"], fn); err != nil {
		respondError(w, h.logger, msg, err)
		return false
	}
	return true
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileID == "" {
		writeError(w, http.StatusBadRequest, "file_id is required")
		return
	}

	snap, err := h.sessions.Create(r.Context(), req.FileID)
	if err != nil {
		respondError(w, h.logger, "Failed to create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetSession handles GET /sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CloseSession handles DELETE /sessions/{id}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["id"]); err != nil {
		respondError(w, h.logger, "Failed to close session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session closed"})
}

// SetTool handles PUT /sessions/{id}/tool
func (h *SessionHandler) SetTool(w http.ResponseWriter, r *http.Request) {
	var req setToolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var state annotation.State
	ok := h.do(w, r, "Failed to set tool", func(s *session.Session) error {
		m := s.Machine()
		if req.Tool != "" {
			tool, err := domain.ParseTool(req.Tool)
			if err != nil {
				return err
			}
			m.SetTool(tool)
		}
		if req.Color != nil {
			if err := m.SetColor(*req.Color); err != nil {
				return err
			}
		}
		if req.FontSize != nil {
			m.SetFontSize(*req.FontSize)
		}
		state = m.State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, state)
	}
}

// Gesture handles POST /sessions/{id}/gestures/{phase}
func (h *SessionHandler) Gesture(w http.ResponseWriter, r *http.Request) {
	phase := mux.Vars(r)["phase"]
	var req pointRequest
	if phase != "end" {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	pt := domain.Point{X: req.X, Y: req.Y}

	var resp outcomeResponse
	ok := h.do(w, r, "Failed to handle gesture", func(s *session.Session) error {
		var out annotation.Outcome
		var err error
		switch phase {
		case "begin":
			out, err = s.BeginGesture(pt)
		case "move":
			out, err = s.ContinueGesture(pt)
		case "end":
			out, err = s.EndGesture()
		default:
			return &domain.ValidationError{Field: "phase", Message: "unknown gesture phase " + strconv.Quote(phase)}
		}
		if err != nil {
			return err
		}
		resp = toOutcome(out, s.Machine().State())
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

// EnterText handles POST /sessions/{id}/text
func (h *SessionHandler) EnterText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var resp outcomeResponse
	ok := h.do(w, r, "Failed to enter text", func(s *session.Session) error {
		a, committed := s.Machine().TextEntered(req.Value)
		resp = committedOutcome(a, committed, s.Machine().State())
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

// CancelText handles DELETE /sessions/{id}/text
func (h *SessionHandler) CancelText(w http.ResponseWriter, r *http.Request) {
	var state annotation.State
	ok := h.do(w, r, "Failed to cancel text", func(s *session.Session) error {
		s.Machine().TextCancelled()
		state = s.Machine().State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, state)
	}
}

// CommitTextEdit handles POST /sessions/{id}/text-edit
func (h *SessionHandler) CommitTextEdit(w http.ResponseWriter, r *http.Request) {
	var req textEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var resp outcomeResponse
	ok := h.do(w, r, "Failed to edit text", func(s *session.Session) error {
		a, committed := s.Machine().CommitTextEdit(req.Text)
		resp = committedOutcome(a, committed, s.Machine().State())
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

// CancelTextEdit handles DELETE /sessions/{id}/text-edit
func (h *SessionHandler) CancelTextEdit(w http.ResponseWriter, r *http.Request) {
	var state annotation.State
	ok := h.do(w, r, "Failed to cancel text edit", func(s *session.Session) error {
		s.Machine().CancelTextEdit()
		state = s.Machine().State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, state)
	}
}

// Undo handles POST /sessions/{id}/undo
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, func(m *annotation.Machine) bool { return m.Undo() })
}

// Redo handles POST /sessions/{id}/redo
func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, func(m *annotation.Machine) bool { return m.Redo() })
}

func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request, step func(*annotation.Machine) bool) {
	var resp historyResponse
	ok := h.do(w, r, "Failed to step history", func(s *session.Session) error {
		resp.Changed = step(s.Machine())
		resp.Editor = s.Machine().State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListAnnotations handles GET /sessions/{id}/pages/{page}/annotations
func (h *SessionHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	var annotations []domain.Annotation
	ok := h.do(w, r, "Failed to list annotations", func(s *session.Session) error {
		if _, err := s.Page(page); err != nil {
			return err
		}
		annotations = s.Machine().AnnotationsForPage(page)
		return nil
	})
	if !ok {
		return
	}
	if annotations == nil {
		annotations = make([]domain.Annotation, 0)
	}
	writeJSON(w, http.StatusOK, annotations)
}

// DeleteAnnotation handles DELETE /sessions/{id}/annotations/{annotationId}
func (h *SessionHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	annotationID := mux.Vars(r)["annotationId"]

	var removed bool
	var state annotation.State
	ok := h.do(w, r, "Failed to delete annotation", func(s *session.Session) error {
		removed = s.Machine().RemoveAnnotation(annotationID)
		state = s.Machine().State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed, "editor": state})
	}
}

// HitTest handles GET /sessions/{id}/hit?x=..&y=..
func (h *SessionHandler) HitTest(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	var found *domain.Annotation
	ok := h.do(w, r, "Failed to hit test", func(s *session.Session) error {
		a, hit, err := s.AnnotationAt(domain.Point{X: x, Y: y})
		if err != nil {
			return err
		}
		if hit {
			found = &a
		}
		return nil
	})
	if !ok {
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "No annotation at point")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// UpdateViewport handles PUT /sessions/{id}/viewport
func (h *SessionHandler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.viewport(w, r, func(s *session.Session) error {
		if !s.Loaded() {
			return domain.ErrNoDocument
		}
		c := s.Viewport()
		if req.Page != nil {
			c.SetPage(*req.Page)
		}
		if req.Zoom != nil {
			c.SetZoom(*req.Zoom)
		}
		if req.Rotate {
			c.Rotate()
		}
		return nil
	})
}

// ZoomIn handles POST /sessions/{id}/viewport/zoom-in
func (h *SessionHandler) ZoomIn(w http.ResponseWriter, r *http.Request) {
	h.viewport(w, r, func(s *session.Session) error {
		s.Viewport().ZoomIn()
		return nil
	})
}

// ZoomOut handles POST /sessions/{id}/viewport/zoom-out
func (h *SessionHandler) ZoomOut(w http.ResponseWriter, r *http.Request) {
	h.viewport(w, r, func(s *session.Session) error {
		s.Viewport().ZoomOut()
		return nil
	})
}

func (h *SessionHandler) viewport(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	var state domain.ViewportState
	ok := h.do(w, r, "Failed to update viewport", func(s *session.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		state = s.Viewport().State()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, state)
	}
}

// DismissError handles POST /sessions/{id}/error/dismiss
func (h *SessionHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	ok := h.do(w, r, "Failed to dismiss error", func(s *session.Session) error {
		s.Viewport().DismissError()
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Error dismissed"})
	}
}

// RenderPNG handles GET /sessions/{id}/render.png
func (h *SessionHandler) RenderPNG(w http.ResponseWriter, r *http.Request) {
	var body []byte
	ok := h.do(w, r, "Failed to render page", func(s *session.Session) error {
		img, err := s.Compose(r.Context())
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
		body = buf.Bytes()
		return nil
	})
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
