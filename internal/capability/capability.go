// Package capability describes optional platform features a session can use
// when the host provides them.
package capability

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when an operation needs a capability the host
// did not provide.
var ErrUnavailable = errors.New("capability unavailable")

// SpeechInput turns spoken input into text.
type SpeechInput interface {
	Listen(ctx context.Context) (string, error)
}

// SpeechOutput reads text aloud.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
}

// Blob is a downloadable document.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// BlobExporter hands a blob to the platform, e.g. as a file download.
type BlobExporter interface {
	Export(ctx context.Context, blob Blob) error
}

// Set groups the optional capabilities. Any field may be nil.
type Set struct {
	SpeechInput  SpeechInput
	SpeechOutput SpeechOutput
	Exporter     BlobExporter
}
