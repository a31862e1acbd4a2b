// Package normalisers provides implementations of the Normaliser
// interface for the page payload shapes the remote store serves.
// Each normaliser extracts canonical plain text from one content type
// and fingerprints it; normalisation is deterministic so the content
// hash can address the derived chunk set.
//
// Normalisers are registered with the Registry at startup.
package normalisers
