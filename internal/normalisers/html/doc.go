// Package html provides a Normaliser implementation for HTML documents.
// It extracts readable text from a page with goquery, dropping scripts,
// styles and page chrome (navigation, headers, footers, asides).
package html
