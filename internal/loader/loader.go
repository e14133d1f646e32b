package loader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/filestore"
	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const maxDocumentBytes = 32 << 20

// Document is a source file reduced to the plain text that gets chunked.
type Document struct {
	Title      string
	Content    string
	SourceType string
	ByteSize   int64
}

// Load reads key from store and converts it by extension. A non-empty
// sourceType overrides the type derived from the extension; "youtube" forces
// transcript parsing.
func Load(ctx context.Context, store filestore.Store, key, sourceType string) (*Document, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", key, maxDocumentBytes, appErr.ErrInvalidInput)
	}
	doc, err := Parse(key, raw, sourceType)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("document loaded",
		zap.String("key", key),
		zap.String("source_type", doc.SourceType),
		zap.Int64("bytes", doc.ByteSize),
		zap.Int("text_len", len(doc.Content)),
	)
	return doc, nil
}

// Parse converts raw file content named name into a Document.
func Parse(name string, raw []byte, sourceType string) (*Document, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	st := strings.ToLower(strings.TrimSpace(sourceType))
	if st == "" {
		st = ext
	}
	if st == "" {
		st = "txt"
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%s is not valid utf-8: %w", name, appErr.ErrInvalidInput)
	}
	doc := &Document{
		Title:      baseTitle(name),
		SourceType: st,
		ByteSize:   int64(len(raw)),
	}
	switch {
	case st == model.SourceTypeYoutube || (ext == "json" && st == "json"):
		tr, err := ParseTranscript(raw)
		if err != nil {
			return nil, err
		}
		if tr.Title != "" {
			doc.Title = tr.Title
		}
		doc.Content = tr.Text()
	case ext == "md" || ext == "markdown":
		title, text := MarkdownText(raw)
		if title != "" {
			doc.Title = title
		}
		doc.Content = text
	default:
		doc.Content = strings.TrimSpace(string(raw))
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%s has no text content: %w", name, appErr.ErrInvalidInput)
	}
	return doc, nil
}

func baseTitle(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
