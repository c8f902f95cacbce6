// Package protocol defines the JSON wire format spoken over the
// WebSocket channel between the server and thin display clients.
//
// Every message is an Envelope carrying an event name and an
// event-specific payload. Inbound events are loadPDF, requestPage,
// preloadPages, ping and disconnect; outbound events are connected,
// pdfLoaded, pageData, pagesPreloaded and pong. Failures travel as the
// same outbound event with an error field set, never as a closed
// connection.
package protocol
