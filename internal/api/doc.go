// Package api provides the JSON REST API server for chart generation.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — pings the database when one is configured
//
// Chart generation lifecycle:
//   - POST /api/2.0/charts/generate            — queue a generation request (202)
//   - GET  /api/2.0/charts/status/{request_id} — poll request status
//
// Saved chart management:
//   - POST   /api/2.0/charts/save       — vet and persist chart code
//   - GET    /api/2.0/charts/list       — list charts, filtered by run_id/experiment_id
//   - DELETE /api/2.0/charts/{chart_id} — delete a saved chart
//
// # Generation Lifecycle
//
// Submissions are validated, stored as pending records, and answered
// immediately with a request id; a background worker picks them up.
// Status polling reports pending → processing → completed|failed. The
// result payload (chart code, title, data sources) appears only on
// completed requests, error_message only on failed ones. Records
// expire after a retention window; saved charts do not expire.
//
// # Error Handling
//
// Errors use a flat envelope:
//
//	{"error_code": "...", "message": "..."}
//
// with codes INVALID_REQUEST, NOT_FOUND, PERMISSION_DENIED,
// INTERNAL_ERROR, and RATE_LIMITED. Handlers translate domain errors
// to envelope codes in exactly one place.
//
// # Security
//
// The middleware stack enforces:
//   - Per-IP rate limiting (token bucket, 60 req/min burst)
//   - CORS with explicit origin allowlist
//   - Security headers (CSP, X-Frame-Options, etc.)
//
// Chart code is scanned by the code policy before a save is accepted,
// independent of any client-side vetting. An optional experiment
// allowlist restricts which experiments accept saved charts.
package api
