package srv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/jobfile"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/preview"
	"github.com/ByLCY/jacket/proof"
)

// JobRequest 描述一个作业：Source 为 .jacket 文本时忽略其余字段。
type JobRequest struct {
	Source string `json:"source,omitempty"`
	jobfile.Spec
}

// PreviewRequest 额外携带预览容器尺寸与输出格式（json 或 svg）。
type PreviewRequest struct {
	JobRequest
	Container preview.Container `json:"container"`
	Format    string            `json:"format,omitempty"`
}

// PreviewResponse 是 format=json 时的响应。
type PreviewResponse struct {
	JobID    string                `json:"jobId"`
	Scene    preview.Scene         `json:"scene"`
	Viewport layout.ViewportState  `json:"viewport"`
	Bounds   layout.ViewportBounds `json:"bounds"`
}

// DefaultContainer 用于请求没有给出容器尺寸时。
var DefaultContainer = preview.Container{WidthPx: 1200, HeightPx: 800}

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	BookID    string `json:"bookId,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, decodeError(err))
		return
	}
	if !req.Container.Valid() {
		req.Container = DefaultContainer
	}
	sess, err := s.session(r, req.JobRequest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer sess.Close()

	switch strings.ToLower(req.Format) {
	case "", "json":
		frame, err := sess.Frame()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		scene, err := preview.Compose(frame, req.Container)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		v, b := sess.Viewport()
		writeJSON(w, http.StatusOK, PreviewResponse{JobID: sess.ID(), Scene: scene, Viewport: v, Bounds: b})
	case "svg":
		snap, err := sess.Snapshot()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		defer snap.Release()
		out, _, err := preview.Render(snap, req.Container, s.opts.Engine, s.opts.ThumbnailPx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(out)
	default:
		s.fail(w, r, badRequest(fmt.Errorf("unsupported format %q", req.Format)))
	}
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, decodeError(err))
		return
	}
	sess, err := s.session(r, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer sess.Close()

	out, err := sess.Export(r.Context(), &proof.Exporter{Compositor: s.compositor, Renderer: s.opts.Engine})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := sess.Name()
	if name == "" {
		name = "jacket"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"-proof.pdf"))
	_, _ = w.Write(out)
}

func (s *Server) session(r *http.Request, req JobRequest) (*job.Session, error) {
	opts := jobfile.Options{
		Config:     s.opts.Job,
		Measurer:   s.opts.Engine,
		Logger:     s.logger,
		Fetcher:    s.fetcher,
		RemoteOnly: true,
	}
	if req.Source != "" {
		return jobfile.Load(r.Context(), "request.jacket", strings.NewReader(req.Source), opts)
	}
	return jobfile.Open(r.Context(), req.Spec, opts)
}

type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{status: http.StatusBadRequest, err: err} }

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{status: http.StatusRequestEntityTooLarge, err: err}
	}
	return badRequest(fmt.Errorf("invalid request body: %w", err))
}

// statusOf 把错误分类映射为 HTTP 状态码。
func statusOf(err error) int {
	var re *requestError
	var ve *job.ValidationError
	switch {
	case errors.As(err, &re):
		return re.status
	case errors.Is(err, job.ErrExportInFlight):
		return http.StatusConflict
	case errors.Is(err, jobfile.ErrSyntax):
		return http.StatusBadRequest
	case errors.As(err, &ve), errors.Is(err, job.ErrBookCap), errors.Is(err, jobfile.ErrInvalid), errors.Is(err, job.ErrNoArtwork):
		return http.StatusUnprocessableEntity
	case errors.Is(err, artwork.ErrNotImage), errors.Is(err, artwork.ErrDecode), errors.Is(err, artwork.ErrHostNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, artwork.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}
	var ve *job.ValidationError
	if errors.As(err, &ve) {
		resp.Error, resp.Field, resp.BookID = ve.Message, ve.Field, ve.BookID
	}
	var ee *job.ExportError
	if errors.As(err, &ee) {
		resp.Retryable = ee.Retryable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
