// Package status implements the status hub for the vibration control
// container.
//
// The hub fans status, command and fault events out to all SSE clients
// and buffers the last N events for reconnection support using
// Last-Event-ID headers. It is the single sink for dispatch engine
// status updates; surfaces subscribe rather than poll.
package status
