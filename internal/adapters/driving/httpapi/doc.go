// Package httpapi exposes the knowledge base as a JSON HTTP API.
//
// Routes live under /api/v1 and are served by a gorilla/mux router wrapped
// in rs/cors. Every response is an APIResponse envelope; domain errors map
// to HTTP status codes in statusFor.
package httpapi
