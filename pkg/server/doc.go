// Package server assembles the PDF viewer server: the WebSocket gateway
// thin display clients speak to, the session table with its idle-session
// sweep, and the HTTP surface for document bytes and rendered page files.
//
// Each WebSocket connection owns exactly one session, created at upgrade
// time; every event on that connection operates on that session and
// refreshes its activity timestamp. Session deletion is the cleanup
// sweep's exclusive responsibility — a disconnect only tears down the
// transport, leaving the session (and its rendered pages) resumable by
// the HTTP surface until the idle timeout expires.
package server
