package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventLoadPDF      = "loadPDF"
	EventRequestPage  = "requestPage"
	EventPreloadPages = "preloadPages"
	EventPing         = "ping"
	EventDisconnect   = "disconnect"
)

// Outbound event names.
const (
	EventConnected      = "connected"
	EventPDFLoaded      = "pdfLoaded"
	EventPageData       = "pageData"
	EventPagesPreloaded = "pagesPreloaded"
	EventPong           = "pong"
)

// Envelope is one message on the wire: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an event payload into an Envelope's wire bytes.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses an Envelope from wire bytes.
func Decode(msg []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("protocol: malformed envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("protocol: envelope missing event")
	}
	return &env, nil
}

// PageOptions carries per-request render options.
type PageOptions struct {
	Quality string `json:"quality,omitempty"`
}

// LoadPDFRequest asks the server to bind a document to the session.
type LoadPDFRequest struct {
	PDFID string `json:"pdfId"`
}

// RequestPageRequest asks for one rendered page.
type RequestPageRequest struct {
	PageNum int         `json:"pageNum"`
	Options PageOptions `json:"options"`
}

// PreloadPagesRequest asks for a batch of rendered pages.
type PreloadPagesRequest struct {
	PageNums []int       `json:"pageNums"`
	Options  PageOptions `json:"options"`
}

// Connected acknowledges a new connection with its session token.
type Connected struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
}

// DocumentMetadata mirrors the metadata block of pdfLoaded responses.
type DocumentMetadata struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
	Creator string `json:"creator"`
	Pages   int    `json:"pages"`
}

// PDFLoaded reports the outcome of a loadPDF request.
type PDFLoaded struct {
	Success    bool              `json:"success"`
	PDFID      string            `json:"pdfId,omitempty"`
	TotalPages int               `json:"totalPages,omitempty"`
	Metadata   *DocumentMetadata `json:"metadata,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PageData carries one rendered page, or a failure for the request.
// Timestamp is unix milliseconds of the render.
type PageData struct {
	PageNum     int    `json:"pageNum,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PreloadedPage is one entry of a pagesPreloaded response. Preloads skip
// the inline base64 copy; clients fetch the bytes via ImageURL.
type PreloadedPage struct {
	PageNum   int    `json:"pageNum"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ImageURL  string `json:"imageUrl"`
	Timestamp int64  `json:"timestamp"`
}

// PagesPreloaded reports a preload batch: the successfully rendered pages
// in the order they were processed, or a failure for the whole batch.
type PagesPreloaded struct {
	Pages []PreloadedPage `json:"pages,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Pong answers a ping. Timestamp is unix milliseconds.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}
