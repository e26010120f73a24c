// Package auth implements bearer token verification for the versioned
// API.
//
// Tokens are HS256 JWTs carrying a subject and a scope list. The
// viewer scope covers read-only access (state, pattern catalog, status
// stream); the control scope additionally covers command submission
// and playback control. The health endpoint stays open so probes work
// without credentials, and the whole middleware is optional: without a
// configured secret every route is open.
package auth
