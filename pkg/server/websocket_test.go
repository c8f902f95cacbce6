package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/protocol"
)

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", event, err)
		}
		data = raw
	}
	if err := conn.WriteJSON(protocol.Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// readInto reads the next envelope, asserts its event name, and decodes
// its data into out.
func readInto(t *testing.T, conn *websocket.Conn, wantEvent string, out any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if env.Event != wantEvent {
		t.Fatalf("event = %q, want %q", env.Event, wantEvent)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode %s data: %v", wantEvent, err)
		}
	}
}

// connect dials the gateway and consumes the connected ack.
func connect(t *testing.T, ts *httptest.Server) (*websocket.Conn, protocol.Connected) {
	t.Helper()
	conn := dialWS(t, ts)
	var ack protocol.Connected
	readInto(t, conn, protocol.EventConnected, &ack)
	return conn, ack
}

func loadSample(t *testing.T, conn *websocket.Conn) protocol.PDFLoaded {
	t.Helper()
	sendEvent(t, conn, protocol.EventLoadPDF, protocol.LoadPDFRequest{PDFID: "sample"})
	var loaded protocol.PDFLoaded
	readInto(t, conn, protocol.EventPDFLoaded, &loaded)
	return loaded
}

func TestWebSocketConnectedAck(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, ack := connect(t, ts)

	if !strings.HasPrefix(ack.SessionID, "session_") {
		t.Errorf("SessionID = %q, want session_ prefix", ack.SessionID)
	}
	if got, err := s.sessions.Get(ack.SessionID); err != nil || got.ID != ack.SessionID {
		t.Errorf("Get(%q) = %v, %v; want registered session", ack.SessionID, got, err)
	}
}

func TestWebSocketLoadPDF(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	loaded := loadSample(t, conn)

	if !loaded.Success {
		t.Fatalf("PDFLoaded.Success = false, error = %q", loaded.Error)
	}
	if loaded.PDFID != "sample" {
		t.Errorf("PDFID = %q, want %q", loaded.PDFID, "sample")
	}
	if loaded.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", loaded.TotalPages)
	}
	if loaded.Metadata == nil || loaded.Metadata.Title != "Sample Document" {
		t.Errorf("Metadata = %+v, want title %q", loaded.Metadata, "Sample Document")
	}
}

func TestWebSocketLoadPDFMissing(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	sendEvent(t, conn, protocol.EventLoadPDF, protocol.LoadPDFRequest{PDFID: "nope"})

	var loaded protocol.PDFLoaded
	readInto(t, conn, protocol.EventPDFLoaded, &loaded)
	if loaded.Success {
		t.Error("loading a missing document should fail")
	}
	if loaded.Error == "" {
		t.Error("failure payload should carry an error message")
	}
}

func TestWebSocketRequestPageBeforeLoad(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	sendEvent(t, conn, protocol.EventRequestPage, protocol.RequestPageRequest{PageNum: 1})

	var page protocol.PageData
	readInto(t, conn, protocol.EventPageData, &page)
	if page.Error != "no PDF loaded" {
		t.Errorf("Error = %q, want %q", page.Error, "no PDF loaded")
	}
}

func TestWebSocketRequestPage(t *testing.T) {
	s, cfg := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, ack := connect(t, ts)
	if loaded := loadSample(t, conn); !loaded.Success {
		t.Fatalf("load failed: %q", loaded.Error)
	}

	sendEvent(t, conn, protocol.EventRequestPage, protocol.RequestPageRequest{
		PageNum: 2,
		Options: protocol.PageOptions{Quality: "high"},
	})

	var page protocol.PageData
	readInto(t, conn, protocol.EventPageData, &page)
	if page.Error != "" {
		t.Fatalf("PageData.Error = %q", page.Error)
	}
	if page.PageNum != 2 {
		t.Errorf("PageNum = %d, want 2", page.PageNum)
	}
	if page.Width != 100 || page.Height != 80 {
		t.Errorf("size = %dx%d, want 100x80", page.Width, page.Height)
	}
	wantURL := cfg.BaseURL + "/pages/" + ack.SessionID + "/page_2.png"
	if page.ImageURL != wantURL {
		t.Errorf("ImageURL = %q, want %q", page.ImageURL, wantURL)
	}
	if page.ImageBase64 == "" {
		t.Error("ImageBase64 should be set on direct page requests")
	}
	if page.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}

	// The rendered file must actually be on disk behind the URL.
	if _, err := s.disk.Path(ack.SessionID, "page_2.png"); err != nil {
		t.Errorf("Path() error = %v, want stored page", err)
	}
}

func TestWebSocketRequestPageOutOfRange(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	if loaded := loadSample(t, conn); !loaded.Success {
		t.Fatalf("load failed: %q", loaded.Error)
	}

	sendEvent(t, conn, protocol.EventRequestPage, protocol.RequestPageRequest{PageNum: 5})

	var page protocol.PageData
	readInto(t, conn, protocol.EventPageData, &page)
	if page.Error == "" {
		t.Fatal("out-of-range request should return an error payload")
	}
	if !strings.Contains(page.Error, "out of range") {
		t.Errorf("Error = %q, want out of range message", page.Error)
	}

	// The connection stays usable after a bad request.
	sendEvent(t, conn, protocol.EventPing, nil)
	var pong protocol.Pong
	readInto(t, conn, protocol.EventPong, &pong)
}

func TestWebSocketPreloadPages(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	if loaded := loadSample(t, conn); !loaded.Success {
		t.Fatalf("load failed: %q", loaded.Error)
	}

	sendEvent(t, conn, protocol.EventPreloadPages, protocol.PreloadPagesRequest{
		PageNums: []int{0, 1, 2, 9},
	})

	var batch protocol.PagesPreloaded
	readInto(t, conn, protocol.EventPagesPreloaded, &batch)
	if batch.Error != "" {
		t.Fatalf("PagesPreloaded.Error = %q", batch.Error)
	}
	if len(batch.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2 (invalid pages skipped)", len(batch.Pages))
	}
	for i, want := range []int{1, 2} {
		if batch.Pages[i].PageNum != want {
			t.Errorf("Pages[%d].PageNum = %d, want %d", i, batch.Pages[i].PageNum, want)
		}
		if batch.Pages[i].ImageURL == "" {
			t.Errorf("Pages[%d].ImageURL is empty", i)
		}
	}
}

func TestWebSocketPing(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _ := connect(t, ts)
	before := time.Now().UnixMilli()
	sendEvent(t, conn, protocol.EventPing, nil)

	var pong protocol.Pong
	readInto(t, conn, protocol.EventPong, &pong)
	if pong.Timestamp < before {
		t.Errorf("Timestamp = %d, want >= %d", pong.Timestamp, before)
	}
}
