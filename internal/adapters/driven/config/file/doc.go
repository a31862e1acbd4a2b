// Package file provides a TOML-backed settings store kept in the
// notedex config directory.
package file
