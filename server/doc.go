// Package server exposes an Engine over HTTP.
//
// Routes:
//
//	POST /search   search.Request in, search.Response or search.ErrorResponse out
//	GET  /info     index description
//	GET  /sources  distinct article sources
//	GET  /healthz  liveness and load state
//
// Every failure is answered with the {error, details, took_ms} payload.
// Invalid requests map to 400, an engine without an index to 503 and any
// other failure to 500.
package server
