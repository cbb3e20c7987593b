// Package normalisers provides implementations of the Normaliser interface
// for the formats the knowledge base loads. Each normaliser knows how to
// extract plain text from a specific MIME type.
//
// Normalisers are registered with a Registry at startup; see NewDefaultRegistry.
package normalisers
