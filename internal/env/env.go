// Package env abstracts environment variable access so config overrides can be tested.
package env

import "os"

// Reader defines an interface for environment variable access.
type Reader interface {
	Getenv(key string) string
}

// OSReader implements Reader using the os package.
type OSReader struct{}

// Getenv returns the value of the environment variable named by key.
func (*OSReader) Getenv(key string) string {
	return os.Getenv(key)
}

// MapReader implements Reader over a fixed map. Missing keys read as "".
type MapReader map[string]string

// Getenv returns the mapped value for key.
func (m MapReader) Getenv(key string) string {
	return m[key]
}
