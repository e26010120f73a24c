// Package api implements the HTTP surface of the vibration control
// container.
//
// Two route families share one server. The legacy single-GET surface
// (`GET /API/{strength}-{duration}{unit}`) speaks the original
// controller's plain JSON shapes for existing clients. The versioned
// surface under /api/v1 uses the unified envelope format
// (result/data/code/message/correlationId) and adds health, state,
// pattern catalog, playback control and the SSE status stream.
package api
