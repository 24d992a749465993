package itfile

import (
	"fmt"
)

// ParseError describes a structurally fatal problem of an IT file.
// Recoverable per-asset problems are reported via Module.Warnings instead.
type ParseError struct {
	// Stage names the file section being parsed, like "pattern[3]".
	Stage string

	Message string

	Offset int
}

func (e *ParseError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s (offset=%d)", e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s (offset=%d)", e.Stage, e.Message, e.Offset)
}
