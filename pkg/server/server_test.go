package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/internal/config"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/document"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/render"
)

// fakeCache serves pre-registered documents without touching MuPDF.
type fakeCache struct {
	docs map[string]*document.Document
}

func (f *fakeCache) Load(ctx context.Context, path string) (*document.Document, error) {
	if doc, ok := f.docs[path]; ok {
		return doc, nil
	}
	return nil, document.ErrNotFound
}

func (f *fakeCache) Count() int {
	return len(f.docs)
}

// stubRenderPage produces a deterministic page without rasterizing.
func stubRenderPage(src render.PageImager, pageNum int, quality render.Quality) (*render.Page, error) {
	data := []byte(fmt.Sprintf("png-page-%d-%s", pageNum, quality))
	return &render.Page{
		PageNum:    pageNum,
		Width:      100,
		Height:     80,
		Data:       data,
		Base64:     base64.StdEncoding.EncodeToString(data),
		RenderedAt: time.Now(),
	}, nil
}

// testServer builds a Server on temp directories with the cache and
// renderer stubbed, plus a document "sample" with three pages.
func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()

	cfg := config.New()
	cfg.PDFDir = filepath.Join(t.TempDir(), "pdfs")
	cfg.PagesDir = filepath.Join(t.TempDir(), "temp_pages")
	cfg.BaseURL = "http://viewer.test"

	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.sessions.Shutdown)

	samplePath := filepath.Join(cfg.PDFDir, "sample.pdf")
	s.cache = &fakeCache{docs: map[string]*document.Document{
		samplePath: {
			Path:       samplePath,
			TotalPages: 3,
			Meta: document.Metadata{
				Title:   "Sample Document",
				Author:  "Unknown",
				Creator: "pdflatex",
				Pages:   3,
			},
		},
	}}
	s.renderPage = stubRenderPage

	return s, cfg
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewDefaultsToDiskStore(t *testing.T) {
	cfg := config.New()
	cfg.PDFDir = filepath.Join(t.TempDir(), "pdfs")
	cfg.PagesDir = filepath.Join(t.TempDir(), "pages")

	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.sessions.Shutdown()

	if s.disk == nil {
		t.Error("disk store should be the default backend")
	}
	if s.store == nil {
		t.Error("store should be set")
	}
}

func TestSweepRemovesStoreArtifacts(t *testing.T) {
	s, _ := testServer(t)

	sess := s.sessions.Create()
	if _, err := s.store.Save(context.Background(), sess.ID, 1, []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s.sessions.mu.Lock()
	s.sessions.sessions[sess.ID].LastActive = time.Now().Add(-time.Hour)
	s.sessions.mu.Unlock()

	removed := s.sessions.SweepIdle(30 * time.Minute)
	if len(removed) != 1 {
		t.Fatalf("SweepIdle() removed %v, want 1 session", removed)
	}

	if _, err := s.disk.Path(sess.ID, "page_1.png"); err == nil {
		t.Error("session page directory should be deleted with the session")
	}
}
