package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bnema/captioner/internal/adapter/export"
	"github.com/bnema/captioner/internal/adapter/http/templates"
	"github.com/bnema/captioner/internal/adapter/http/validation"
	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/service"
)

// Owner recorded for sessions created over HTTP when none is given.
const apiOwner = "api"

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Pipeline is the part of the orchestrator the HTTP layer drives.
type Pipeline interface {
	SubmitVideo(ctx context.Context, req service.SubmitRequest) (*domain.Session, error)
	ApplyUserEvent(ctx context.Context, sessionID string, ev domain.UserEvent) error
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Segments(ctx context.Context, sessionID string) ([]*domain.Segment, error)
	SessionsByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error)
	Styles() []domain.Style
}

type Handlers struct {
	pipeline Pipeline
	cfg      Config
}

func NewHandlers(pipeline Pipeline, cfg Config) *Handlers {
	return &Handlers{pipeline: pipeline, cfg: cfg}
}

type sessionResponse struct {
	*domain.Session
	Segments []*domain.Segment `json:"segments"`
}

type createRequest struct {
	SessionID string `json:"session_id"`
	OwnerID   string `json:"owner_id"`
	VideoRef  string `json:"video_ref"`
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.cfg.Version})
	}
}

func (h *Handlers) ListStyles() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.pipeline.Styles())
	}
}

func (h *Handlers) ListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			owner = apiOwner
		}
		sessions, err := h.pipeline.SessionsByOwner(r.Context(), owner)
		if err != nil {
			writeError(w, err)
			return
		}
		if sessions == nil {
			sessions = []*domain.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// CreateSession accepts a multipart upload (field "file") or a JSON body
// naming a video already stored under an allowed directory.
func (h *Handlers) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			ref, status, err := h.saveUpload(w, r)
			if err != nil {
				writeJSONError(w, status, err.Error())
				return
			}
			req = createRequest{SessionID: r.FormValue("session_id"), OwnerID: r.FormValue("owner_id"), VideoRef: ref}
		} else {
			if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			ref, err := h.allowedRef(req.VideoRef)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.VideoRef = ref
		}
		if req.OwnerID == "" {
			req.OwnerID = apiOwner
		}

		sess, err := h.pipeline.SubmitVideo(r.Context(), service.SubmitRequest{
			SessionID: strings.TrimSpace(req.SessionID),
			OwnerID:   req.OwnerID,
			VideoRef:  req.VideoRef,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Location", "/api/sessions/"+sess.ID)
		writeJSON(w, http.StatusAccepted, sessionResponse{Session: sess, Segments: []*domain.Segment{}})
	}
}

func (h *Handlers) saveUpload(w http.ResponseWriter, r *http.Request) (string, int, error) {
	maxBytes := int64(h.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("file larger than %d MB", h.cfg.MaxUploadMB)
		}
		return "", http.StatusBadRequest, errors.New("invalid multipart body")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", http.StatusBadRequest, errors.New("missing file field")
	}
	defer file.Close() //nolint:errcheck

	mime, ext, err := validation.DetectVideo(file)
	if err != nil {
		logger.Warn.Printf("rejected upload %s (%s)", logger.Field(header.Filename), mime)
		return "", http.StatusUnsupportedMediaType, validation.ErrNotVideo
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0755); err != nil {
		logger.Error.Printf("create upload dir: %v", err)
		return "", http.StatusInternalServerError, errors.New("failed to store upload")
	}
	name := validation.SanitizeFilename(header.Filename)
	name = uuid.NewString()[:8] + "_" + strings.TrimSuffix(name, filepath.Ext(name)) + ext
	path := filepath.Join(h.cfg.UploadDir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		logger.Error.Printf("create upload file: %v", err)
		return "", http.StatusInternalServerError, errors.New("failed to store upload")
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		logger.Error.Printf("write upload %s: %v", name, err)
		msg := "failed to store upload"
		if strings.Contains(err.Error(), "no space left") {
			msg = "failed to store upload: disk full"
		}
		return "", http.StatusInternalServerError, errors.New(msg)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", http.StatusInternalServerError, errors.New("failed to store upload")
	}
	logger.Info.Printf("stored upload %s (%s)", name, mime)
	return path, 0, nil
}

// allowedRef resolves a JSON video reference to a regular file inside one
// of the configured roots.
func (h *Handlers) allowedRef(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("video_ref is required")
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", errors.New("invalid video_ref")
	}
	inside := false
	for _, root := range h.cfg.AllowedRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(rootAbs, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			inside = true
			break
		}
	}
	if !inside {
		return "", errors.New("video_ref is outside the allowed directories")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", errors.New("video_ref does not name a file")
	}
	return abs, nil
}

func (h *Handlers) GetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, segs, err := h.load(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Segments: segs})
	}
}

// PostEvent applies one user event. segment_id may also be a 1-based
// segment number.
func (h *Handlers) PostEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		in, err := domain.DecodeInboundEvent(body)
		if err != nil {
			writeError(w, err)
			return
		}
		if in.SessionID != "" && in.SessionID != id {
			writeJSONError(w, http.StatusBadRequest, "session_id does not match the URL")
			return
		}
		if in.SegmentID != "" {
			in.SegmentID = domain.ResolveSegmentRef(id, in.SegmentID)
		}
		ev, err := in.UserEvent()
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.pipeline.ApplyUserEvent(r.Context(), id, ev); err != nil {
			writeError(w, err)
			return
		}

		sess, segs, err := h.load(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, sessionResponse{Session: sess, Segments: segs})
	}
}

func (h *Handlers) Output() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.pipeline.Session(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if sess.State != domain.SessionCompleted || sess.OutputRef == "" {
			writeJSONError(w, http.StatusNotFound, "no output yet")
			return
		}
		w.Header().Set("Content-Disposition", validation.ContentDisposition(sess.ID+"_captioned.mp4", false))
		http.ServeFile(w, r, sess.OutputRef)
	}
}

func (h *Handlers) Preview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		_, segs, err := h.load(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		segID := domain.ResolveSegmentRef(id, r.PathValue("n"))
		for _, seg := range segs {
			if seg.ID != segID {
				continue
			}
			if seg.PreviewRef == "" {
				writeJSONError(w, http.StatusNotFound, "no preview yet")
				return
			}
			w.Header().Set("Content-Disposition", validation.ContentDisposition(filepath.Base(seg.PreviewRef), true))
			http.ServeFile(w, r, seg.PreviewRef)
			return
		}
		writeError(w, domain.ErrSegmentNotFound)
	}
}

// Transcript serves the session transcript as a Word document.
func (h *Handlers) Transcript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, segs, err := h.load(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !export.HasTranscript(segs) {
			writeJSONError(w, http.StatusConflict, "no transcript yet")
			return
		}

		dir, err := os.MkdirTemp("", "captioner-export-*")
		if err != nil {
			writeError(w, err)
			return
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		path := filepath.Join(dir, "transcript.docx")
		if err := export.WriteDocx(path, sess, segs); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", docxContentType)
		w.Header().Set("Content-Disposition", validation.ContentDisposition(sess.ID+"_transcript.docx", false))
		http.ServeFile(w, r, path)
	}
}

func (h *Handlers) StatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		sess, segs, err := h.load(r.Context(), id)
		if err != nil {
			status, msg := errorStatus(err)
			w.WriteHeader(status)
			_ = templates.ErrorPage(fmt.Sprint(status), msg).Render(r.Context(), w)
			return
		}
		_ = templates.SessionPage(buildView(sess, segs), "/events/"+sess.ID).Render(r.Context(), w)
	}
}

func (h *Handlers) load(ctx context.Context, id string) (*domain.Session, []*domain.Segment, error) {
	sess, err := h.pipeline.Session(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	segs, err := h.pipeline.Segments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if segs == nil {
		segs = []*domain.Segment{}
	}
	return sess, segs, nil
}

func buildView(sess *domain.Session, segs []*domain.Segment) templates.SessionView {
	v := templates.SessionView{
		ID:            sess.ID,
		State:         string(sess.State),
		StateLabel:    sess.State.Label(),
		Style:         sess.CaptionStyle,
		Mode:          string(sess.CaptionMode),
		FailureReason: sess.FailureReason,
		Terminal:      sess.IsTerminal(),
	}
	if sess.State == domain.SessionCompleted && sess.OutputRef != "" {
		v.OutputURL = "/api/sessions/" + sess.ID + "/output"
	}
	for _, seg := range segs {
		sv := templates.SegmentView{
			Number:     seg.Index + 1,
			Status:     string(seg.Status),
			Transcript: seg.Transcript(),
			Mode:       string(seg.EffectiveMode(sess.CaptionMode)),
		}
		if seg.PreviewRef != "" {
			sv.PreviewURL = fmt.Sprintf("/api/sessions/%s/segments/%d/preview", sess.ID, seg.Index+1)
		}
		v.Segments = append(v.Segments, sv)
	}
	return v
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrSegmentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrDuplicateSession), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUnknownStyle), errors.Is(err, domain.ErrInvalidMode):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrLaneFull), errors.Is(err, service.ErrLanesStopped):
		return http.StatusServiceUnavailable, "busy, try again"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	if status >= 500 {
		logger.Error.Printf("request failed: %v", err)
	}
	writeJSONError(w, status, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}
