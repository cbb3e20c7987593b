// Package connectors holds the adapters that pull raw content from places
// outside the knowledge base: a watched folder on disk and the web.
package connectors
