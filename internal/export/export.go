// Package export serialises conversations and messages into downloadable
// documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/capitalize-ai/mchat/internal/capability"
	"github.com/capitalize-ai/mchat/internal/model"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"

	// TimestampLayout renders message timestamps in the reader's location.
	TimestampLayout = "1/2/2006, 3:04:05 PM"
)

// ConversationDocument is the exported form of a conversation.
type ConversationDocument struct {
	Title      string          `json:"title"`
	Messages   []model.Message `json:"messages"`
	ExportedAt time.Time       `json:"exportedAt"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Conversation renders conv as an indented JSON document.
func Conversation(conv model.Conversation, exportedAt time.Time) (capability.Blob, error) {
	messages := conv.Messages
	if messages == nil {
		messages = []model.Message{}
	}

	data, err := json.MarshalIndent(ConversationDocument{
		Title:      conv.Title,
		Messages:   messages,
		ExportedAt: exportedAt.UTC(),
	}, "", "  ")
	if err != nil {
		return capability.Blob{}, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	return capability.Blob{
		Name:        ConversationFilename(conv.Title),
		ContentType: ContentTypeJSON,
		Data:        data,
	}, nil
}

// ConversationFilename returns chat-<slug>.json for the given title.
func ConversationFilename(title string) string {
	slug := whitespace.ReplaceAllString(strings.ToLower(title), "-")
	return "chat-" + slug + ".json"
}

// MessageLine renders msg as "[timestamp] ROLE: content" with the timestamp
// shown in loc.
func MessageLine(msg model.Message, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("[%s] %s: %s",
		msg.Timestamp.In(loc).Format(TimestampLayout),
		strings.ToUpper(string(msg.Role)),
		msg.Content,
	)
}

// Message renders msg as a plain text blob.
func Message(msg model.Message, loc *time.Location) capability.Blob {
	return capability.Blob{
		Name:        "message-" + msg.ID + ".txt",
		ContentType: ContentTypeText,
		Data:        []byte(MessageLine(msg, loc)),
	}
}

// DirExporter writes blobs as files into a directory.
type DirExporter struct {
	Dir string
}

// NewDirExporter creates the directory if needed.
func NewDirExporter(dir string) (*DirExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &DirExporter{Dir: dir}, nil
}

// Export implements capability.BlobExporter.
func (e *DirExporter) Export(ctx context.Context, blob capability.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(blob.Name)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid blob name %q", blob.Name)
	}
	if err := os.WriteFile(filepath.Join(e.Dir, name), blob.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
