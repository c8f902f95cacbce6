package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/document"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/protocol"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/render"
)

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// HandleWebSocket upgrades the connection and runs its event loop.
//
// The loop processes one event at a time in the order received, so a
// session's responses never reorder; each connection runs in its own
// goroutine, so one session's render never starves another's ping.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.Create()
	s.metrics.sessionsTotal.Inc()
	s.metrics.activeSessions.Set(float64(s.sessions.Count()))

	logger := s.logger.With("session_id", sess.ID)
	logger.Info("client connected", "remote", r.RemoteAddr)

	if err := s.writeEvent(conn, protocol.EventConnected, protocol.Connected{
		SessionID: sess.ID,
		Message:   "Connected to PDF viewer server",
	}); err != nil {
		logger.Error("connected ack failed", "error", err)
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			// Transport teardown only. The session record stays until
			// the cleanup sweep expires it.
			logger.Info("client disconnected", "error", err)
			return
		}

		env, err := protocol.Decode(msg)
		if err != nil {
			logger.Warn("dropping malformed message", "error", err)
			continue
		}
		s.metrics.eventsTotal.WithLabelValues(env.Event).Inc()

		switch env.Event {
		case protocol.EventLoadPDF:
			s.handleLoadPDF(r.Context(), conn, sess.ID, env.Data, logger)
		case protocol.EventRequestPage:
			s.handleRequestPage(r.Context(), conn, sess.ID, env.Data, logger)
		case protocol.EventPreloadPages:
			s.handlePreloadPages(r.Context(), conn, sess.ID, env.Data, logger)
		case protocol.EventPing:
			s.handlePing(conn, sess.ID, logger)
		case protocol.EventDisconnect:
			logger.Info("client requested disconnect")
			return
		default:
			logger.Debug("ignoring unknown event", "event", env.Event)
		}
	}
}

// handleLoadPDF resolves the id, loads the document through the cache and
// binds it to the session. Failures leave the session unbound and emit a
// pdfLoaded failure payload; the connection stays open.
func (s *Server) handleLoadPDF(ctx context.Context, conn *websocket.Conn, sessionID string, data json.RawMessage, logger *slog.Logger) {
	s.touch(sessionID, logger)

	var req protocol.LoadPDFRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PDFID == "" {
		s.writeEventLogged(conn, protocol.EventPDFLoaded,
			protocol.PDFLoaded{Success: false, Error: "missing pdfId"}, logger)
		return
	}

	path, err := s.pdfPath(req.PDFID)
	if err != nil {
		s.writeEventLogged(conn, protocol.EventPDFLoaded,
			protocol.PDFLoaded{Success: false, Error: "PDF file not found"}, logger)
		return
	}

	ctx, span := startSpan(ctx, "gateway.loadPDF",
		attribute.String("pdf.id", req.PDFID))
	doc, err := s.cache.Load(ctx, path)
	endSpan(span, err)

	if err != nil {
		resp := protocol.PDFLoaded{Success: false}
		switch {
		case errors.Is(err, document.ErrNotFound):
			s.metrics.documentLoads.WithLabelValues("not_found").Inc()
			resp.Error = "PDF file not found"
		default:
			s.metrics.documentLoads.WithLabelValues("error").Inc()
			resp.Error = "failed to load PDF document"
			logger.Error("document load failed", "pdf_id", req.PDFID, "error", err)
		}
		s.writeEventLogged(conn, protocol.EventPDFLoaded, resp, logger)
		return
	}
	s.metrics.documentLoads.WithLabelValues("ok").Inc()

	if err := s.sessions.BindDocument(sessionID, doc.Path); err != nil {
		logger.Warn("bind after load failed", "error", err)
		s.writeEventLogged(conn, protocol.EventPDFLoaded,
			protocol.PDFLoaded{Success: false, Error: "session expired"}, logger)
		return
	}

	meta := protocol.DocumentMetadata(doc.Meta)
	s.writeEventLogged(conn, protocol.EventPDFLoaded, protocol.PDFLoaded{
		Success:    true,
		PDFID:      req.PDFID,
		TotalPages: doc.TotalPages,
		Metadata:   &meta,
	}, logger)
	logger.Info("pdf loaded", "pdf_id", req.PDFID, "pages", doc.TotalPages)
}

// handleRequestPage renders and persists one page for the session.
func (s *Server) handleRequestPage(ctx context.Context, conn *websocket.Conn, sessionID string, data json.RawMessage, logger *slog.Logger) {
	s.touch(sessionID, logger)

	var req protocol.RequestPageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.writeEventLogged(conn, protocol.EventPageData,
			protocol.PageData{Error: "malformed requestPage payload"}, logger)
		return
	}

	doc, failure := s.boundDocument(ctx, sessionID, logger)
	if failure != "" {
		s.writeEventLogged(conn, protocol.EventPageData,
			protocol.PageData{Error: failure}, logger)
		return
	}

	if !doc.ValidPage(req.PageNum) {
		rangeErr := &PageRangeError{PageNum: req.PageNum, TotalPages: doc.TotalPages}
		s.writeEventLogged(conn, protocol.EventPageData,
			protocol.PageData{Error: fmt.Sprintf("page %d out of range (1-%d)", req.PageNum, doc.TotalPages)}, logger)
		logger.Warn("page request rejected", "error", rangeErr)
		return
	}

	page, ref, err := s.renderAndPersist(ctx, sessionID, doc, req.PageNum, render.Quality(req.Options.Quality))
	if err != nil {
		logger.Error("page render failed",
			"page", req.PageNum, "error", &SessionError{SessionID: sessionID, Op: "requestPage", Err: err})
		s.writeEventLogged(conn, protocol.EventPageData,
			protocol.PageData{Error: fmt.Sprintf("failed to render page %d", req.PageNum)}, logger)
		return
	}

	s.writeEventLogged(conn, protocol.EventPageData, protocol.PageData{
		PageNum:     page.PageNum,
		Width:       page.Width,
		Height:      page.Height,
		ImageURL:    s.pageURL(ref),
		ImageBase64: page.Base64,
		Timestamp:   page.RenderedAt.UnixMilli(),
	}, logger)
	logger.Info("page rendered", "page", req.PageNum, "width", page.Width, "height", page.Height)
}

// handlePreloadPages renders a batch. Page numbers outside the document
// are silently skipped; results keep the order they were processed in.
// Preload responses carry no inline base64, only the reference.
func (s *Server) handlePreloadPages(ctx context.Context, conn *websocket.Conn, sessionID string, data json.RawMessage, logger *slog.Logger) {
	s.touch(sessionID, logger)

	var req protocol.PreloadPagesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.writeEventLogged(conn, protocol.EventPagesPreloaded,
			protocol.PagesPreloaded{Error: "malformed preloadPages payload"}, logger)
		return
	}

	doc, failure := s.boundDocument(ctx, sessionID, logger)
	if failure != "" {
		s.writeEventLogged(conn, protocol.EventPagesPreloaded,
			protocol.PagesPreloaded{Error: failure}, logger)
		return
	}

	pages := make([]protocol.PreloadedPage, 0, len(req.PageNums))
	for _, pageNum := range req.PageNums {
		if !doc.ValidPage(pageNum) {
			continue
		}
		page, ref, err := s.renderAndPersist(ctx, sessionID, doc, pageNum, render.Quality(req.Options.Quality))
		if err != nil {
			logger.Error("preload render failed",
				"page", pageNum, "error", &SessionError{SessionID: sessionID, Op: "preloadPages", Err: err})
			s.writeEventLogged(conn, protocol.EventPagesPreloaded,
				protocol.PagesPreloaded{Error: fmt.Sprintf("failed to render page %d", pageNum)}, logger)
			return
		}
		pages = append(pages, protocol.PreloadedPage{
			PageNum:   page.PageNum,
			Width:     page.Width,
			Height:    page.Height,
			ImageURL:  s.pageURL(ref),
			Timestamp: page.RenderedAt.UnixMilli(),
		})
	}

	s.writeEventLogged(conn, protocol.EventPagesPreloaded,
		protocol.PagesPreloaded{Pages: pages}, logger)
	logger.Info("pages preloaded", "count", len(pages))
}

// handlePing echoes a liveness acknowledgment; it also counts as session
// activity, keeping long-lived idle viewers out of the sweep.
func (s *Server) handlePing(conn *websocket.Conn, sessionID string, logger *slog.Logger) {
	s.touch(sessionID, logger)
	s.writeEventLogged(conn, protocol.EventPong,
		protocol.Pong{Timestamp: time.Now().UnixMilli()}, logger)
}

// boundDocument resolves the session's bound document, returning a
// client-facing failure message when there is none.
func (s *Server) boundDocument(ctx context.Context, sessionID string, logger *slog.Logger) (*document.Document, string) {
	path, err := s.sessions.Document(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, "session expired"
		}
		return nil, "no PDF loaded"
	}

	// A bound path always resolves through the cache; this is a hit.
	doc, err := s.cache.Load(ctx, path)
	if err != nil {
		logger.Error("bound document no longer loadable", "path", path, "error", err)
		return nil, "failed to load PDF document"
	}
	return doc, ""
}

// renderAndPersist runs the render pipeline for one page and stores the
// result under the session.
func (s *Server) renderAndPersist(ctx context.Context, sessionID string, doc *document.Document, pageNum int, quality render.Quality) (*render.Page, string, error) {
	quality = quality.Normalize()
	_, span := startSpan(ctx, "gateway.renderPage",
		attribute.Int("page.num", pageNum),
		attribute.String("page.quality", string(quality)))

	start := time.Now()
	page, err := s.renderPage(doc, pageNum, quality)
	s.metrics.renderDuration.WithLabelValues(string(quality)).Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.pagesRendered.WithLabelValues(string(quality), "error").Inc()
		endSpan(span, err)
		return nil, "", err
	}
	endSpan(span, nil)

	ctx, span = startSpan(ctx, "gateway.persistPage",
		attribute.Int("page.num", pageNum))
	ref, err := s.store.Save(ctx, sessionID, pageNum, page.Data)
	endSpan(span, err)
	if err != nil {
		s.metrics.pagesRendered.WithLabelValues(string(quality), "error").Inc()
		return nil, "", err
	}

	s.metrics.pagesRendered.WithLabelValues(string(quality), "ok").Inc()
	return page, ref, nil
}

// touch refreshes session activity for any handled event.
func (s *Server) touch(sessionID string, logger *slog.Logger) {
	if err := s.sessions.Touch(sessionID); err != nil {
		logger.Debug("touch on missing session", "error", err)
	}
}

// pageURL turns a store reference into the URL sent to clients. Disk
// references are rooted paths and get the configured base URL; S3
// references are already absolute.
func (s *Server) pageURL(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return s.config.BaseURL + ref
	}
	return ref
}

// writeEvent sends one envelope with a bounded write deadline.
func (s *Server) writeEvent(conn *websocket.Conn, event string, payload any) error {
	msg, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// writeEventLogged is writeEvent for paths where the only recourse on a
// dead connection is logging; the read loop notices the close and exits.
func (s *Server) writeEventLogged(conn *websocket.Conn, event string, payload any, logger *slog.Logger) {
	if err := s.writeEvent(conn, event, payload); err != nil {
		logger.Warn("write failed", "event", event, "error", err)
	}
}
