package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type Transcript struct {
	Title    string    `json:"title"`
	VideoID  string    `json:"video_id"`
	Segments []Segment `json:"segments"`
}

// Text joins segment texts in order, dropping empty segments and caption
// markers such as [Music].
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		s := strings.Join(strings.Fields(seg.Text), " ")
		if s == "" || isCaptionMarker(s) {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// ParseTranscript accepts either a bare segment array or an object with a
// segments field.
func ParseTranscript(raw []byte) (*Transcript, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty transcript: %w", appErr.ErrInvalidInput)
	}
	tr := &Transcript{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &tr.Segments); err != nil {
			return nil, fmt.Errorf("decode transcript segments: %w: %w", appErr.ErrInvalidInput, err)
		}
		return tr, nil
	}
	if err := json.Unmarshal(trimmed, tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w: %w", appErr.ErrInvalidInput, err)
	}
	return tr, nil
}

func isCaptionMarker(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && !strings.Contains(s[1:len(s)-1], "[")
}
