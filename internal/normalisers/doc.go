// Package normalisers provides implementations of the Normaliser interface
// for the supported document types. Each normaliser knows how to extract
// text from one format; the Registry picks the highest priority normaliser
// for a document's type.
//
// Normalisers are registered with the Registry at startup.
package normalisers
