package srv

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/jobfile"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/proof"
	canvasrenderer "github.com/ByLCY/jacket/renderer/canvas"
)

func newServer(t *testing.T, rpm int, mutate ...func(*Options)) *Server {
	t.Helper()
	opts := Options{
		Engine:            canvasrenderer.NewRenderer(""),
		Job:               job.DefaultConfig(),
		Proof:             proof.DefaultConfig(),
		Fetch:             artwork.DefaultFetchConfig(),
		RequestsPerMinute: rpm,
		ThumbnailPx:       200,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(opts)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func twoBooks() []layout.BookSpec {
	return []layout.BookSpec{
		{ID: "a", SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 210, ColorToken: "#A83232", ShortText: "Dune", ISBN: "9780441013593"},
		{ID: "b", SpineWidthMm: 25, CoverWidthMm: 150, HeightMm: 200, ColorToken: "navy", ShortText: "Messiah"},
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(t, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPreviewJSON(t *testing.T) {
	s := newServer(t, 0)
	rec := post(t, s, "/api/preview", PreviewRequest{
		JobRequest: JobRequest{Spec: jobfile.Spec{Name: "Shelf", Books: twoBooks(), Caption: "${job.name}"}},
		Container:  DefaultContainer,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Len(t, resp.Scene.Spines, 2)
	assert.LessOrEqual(t, resp.Scene.Scale, 1.0)
	assert.Equal(t, layout.DefaultViewport(), resp.Viewport)
	assert.Equal(t, "Shelf", resp.Scene.Texts[0].Content)
}

func TestPreviewFromSourceAsSVG(t *testing.T) {
	s := newServer(t, 0)
	src := `job Src { caption "Hi" book { spine: 30mm cover: 150mm height: 210mm short: "One" } }`
	rec := post(t, s, "/api/preview", PreviewRequest{
		JobRequest: JobRequest{Source: src},
		Container:  DefaultContainer,
		Format:     "svg",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestProofPDF(t *testing.T) {
	s := newServer(t, 0)
	rec := post(t, s, "/api/proof", JobRequest{Spec: jobfile.Spec{
		Name:    "Shelf",
		Books:   twoBooks(),
		Artwork: &jobfile.ArtworkSpec{Name: "art.png", Data: pngBytes(t, 1200, 900)},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Shelf-proof.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestProofFetchesArtworkByURL(t *testing.T) {
	payload := pngBytes(t, 600, 400)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer origin.Close()

	s := newServer(t, 0)
	rec := post(t, s, "/api/proof", JobRequest{Spec: jobfile.Spec{
		Books:   twoBooks(),
		Artwork: &jobfile.ArtworkSpec{Src: origin.URL + "/cover.png"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "jacket-proof.pdf")
}

func TestProofFetchRespectsAllowedHosts(t *testing.T) {
	payload := pngBytes(t, 600, 400)
	var hits int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(payload)
	}))
	defer origin.Close()
	body := JobRequest{Spec: jobfile.Spec{
		Books:   twoBooks(),
		Artwork: &jobfile.ArtworkSpec{Src: origin.URL + "/cover.png"},
	}}

	locked := newServer(t, 0, func(o *Options) { o.Fetch.AllowedHosts = []string{"covers.example.com"} })
	rec := post(t, locked, "/api/proof", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits), "不在允许列表中的主机不应被访问")

	open := newServer(t, 0, func(o *Options) { o.Fetch.AllowedHosts = []string{"127.0.0.1"} })
	rec = post(t, open, "/api/proof", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestProofRejectsOversizedArtwork(t *testing.T) {
	s := newServer(t, 0, func(o *Options) { o.Job.Advice.MaxPixels = 10_000 })
	rec := post(t, s, "/api/proof", JobRequest{Spec: jobfile.Spec{
		Books:   twoBooks(),
		Artwork: &jobfile.ArtworkSpec{Name: "art.png", Data: pngBytes(t, 200, 200)},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "exceeds")
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t, 0)
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		field  string
	}{
		{"no artwork", "/api/proof", JobRequest{Spec: jobfile.Spec{Books: twoBooks()}}, http.StatusUnprocessableEntity, ""},
		{"too tall", "/api/preview", PreviewRequest{JobRequest: JobRequest{Spec: jobfile.Spec{Books: []layout.BookSpec{{SpineWidthMm: 30, CoverWidthMm: 150, HeightMm: 400}}}}}, http.StatusUnprocessableEntity, "heightMm"},
		{"no books", "/api/preview", PreviewRequest{}, http.StatusUnprocessableEntity, ""},
		{"syntax", "/api/preview", PreviewRequest{JobRequest: JobRequest{Source: "job {"}}, http.StatusBadRequest, ""},
		{"local file", "/api/proof", JobRequest{Spec: jobfile.Spec{Books: twoBooks(), Artwork: &jobfile.ArtworkSpec{Src: "/etc/hosts"}}}, http.StatusUnprocessableEntity, ""},
		{"not an image", "/api/proof", JobRequest{Spec: jobfile.Spec{Books: twoBooks(), Artwork: &jobfile.ArtworkSpec{Name: "a.txt", Data: []byte("plain text")}}}, http.StatusUnprocessableEntity, ""},
		{"text named png", "/api/proof", JobRequest{Spec: jobfile.Spec{Books: twoBooks(), Artwork: &jobfile.ArtworkSpec{Name: "cover.png", Data: []byte("hello, this is a plain text file")}}}, http.StatusUnprocessableEntity, "artwork"},
		{"bad format", "/api/preview", PreviewRequest{JobRequest: JobRequest{Spec: jobfile.Spec{Books: twoBooks()}}, Format: "gif"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Equal(t, tt.field, resp.Field)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/proof", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	newServer(t, 0).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, 1)
	body := PreviewRequest{JobRequest: JobRequest{Spec: jobfile.Spec{Books: twoBooks()}}}
	require.Equal(t, http.StatusOK, post(t, s, "/api/preview", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, s, "/api/preview", body).Code)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
