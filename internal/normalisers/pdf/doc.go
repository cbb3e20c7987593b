// Package pdf provides a Normaliser implementation for PDF documents.
//
// Text is extracted with pdfcpu: each page's content stream is decoded and
// its text-showing operators (Tj, TJ, ' and ") are read back into plain
// text, one page after another. Strings are mapped through the ToUnicode
// CMap of the font selected with Tf, so composite (Identity-H) fonts
// decode to characters rather than glyph IDs.
package pdf
