// Package clip copies generated tokens to the system clipboard.
package clip

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// writeAll is a package-level variable to allow mocking in tests.
var writeAll = clipboard.WriteAll

// ErrUnavailable is returned when the platform has no clipboard utility
var ErrUnavailable = errors.New("clipboard unavailable")

// Writer writes text to the system clipboard
type Writer struct{}

// WriteAll copies text. Failures are wrapped with ErrUnavailable so callers
// can fall back to printing the text.
func (Writer) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if err := writeAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FallbackMessage is shown when copying failed
func FallbackMessage(err error) string {
	if err == nil {
		return ""
	}
	return "Could not copy to clipboard; select the text and copy it manually"
}
