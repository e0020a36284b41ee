// Package messages turns hosting-platform thread messages into the text and
// citation payloads returned to callers.
package messages

import (
	"context"
	"fmt"

	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
)

// Formatter extracts message text and resolves citation file names.
type Formatter struct {
	files contracts.FileGetter
}

// NewFormatter creates a formatter that looks up cited files through files.
func NewFormatter(files contracts.FileGetter) *Formatter {
	return &Formatter{files: files}
}

// Extract returns the first text block of msg and its citations, file
// citations first, then url citations. Each file citation costs one file
// lookup.
func (f *Formatter) Extract(ctx context.Context, msg *models.Message) (string, []models.Annotation, error) {
	content := ""
	if len(msg.Content) > 0 && msg.Content[0].Text != nil {
		content = msg.Content[0].Text.Value
	}

	annotations := []models.Annotation{}
	for _, a := range msg.FileCitationAnnotations() {
		ann := models.Annotation{
			Type:       models.AnnotationFileCitation,
			Text:       a.Text,
			StartIndex: a.StartIndex,
			EndIndex:   a.EndIndex,
		}
		if a.FileCitation != nil {
			file, err := f.files.GetFile(ctx, a.FileCitation.FileID)
			if err != nil {
				return "", nil, fmt.Errorf("resolve cited file %s: %w", a.FileCitation.FileID, err)
			}
			ann.FileID = a.FileCitation.FileID
			ann.FileName = file.Filename
			ann.Quote = a.FileCitation.Quote
		}
		annotations = append(annotations, ann)
	}
	for _, a := range msg.URLCitationAnnotations() {
		ann := models.Annotation{
			Type:       models.AnnotationURLCitation,
			Text:       a.Text,
			StartIndex: a.StartIndex,
			EndIndex:   a.EndIndex,
		}
		if a.URLCitation != nil {
			ann.URL = a.URLCitation.URL
			ann.Title = a.URLCitation.Title
		}
		annotations = append(annotations, ann)
	}
	return content, annotations, nil
}

// FormatHistory converts a newest-first message list into chronological
// order, decorating each entry with its extracted content.
func (f *Formatter) FormatHistory(ctx context.Context, msgs []models.Message, threadID string) ([]models.ThreadMessage, error) {
	out := make([]models.ThreadMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := &msgs[i]
		content, annotations, err := f.Extract(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ThreadMessage{
			ID:          m.ID,
			Role:        m.Role,
			Content:     content,
			Annotations: annotations,
			CreatedAt:   m.CreatedAt,
			ThreadID:    threadID,
		})
	}
	return out, nil
}
