// Package web fetches web pages and remote PDFs over HTTP(S).
//
// Requests are throttled per host, bounded by a configurable timeout and
// body size, and sent with a browser-like User-Agent because many
// publishers reject default Go clients.
package web
