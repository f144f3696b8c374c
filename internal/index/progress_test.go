package index

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingProgress struct {
	updates []string
	failed  []string
}

func (r *recordingProgress) Update(_, _ int, message string) { r.updates = append(r.updates, message) }
func (r *recordingProgress) Failed(item string, _ error)     { r.failed = append(r.failed, item) }

func TestOrNop(t *testing.T) {
	assert.Equal(t, NopProgress{}, OrNop(nil))
	r := &recordingProgress{}
	assert.Same(t, r, OrNop(r))
}

func TestMultiProgress(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	p := MultiProgress{a, b, NopProgress{}}

	p.Update(1, 2, "indexing")
	p.Failed("a.pdf", errors.New("unreadable"))

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, []string{"indexing"}, r.updates)
		assert.Equal(t, []string{"a.pdf"}, r.failed)
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	p := LogProgress{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	p.Update(3, 10, "fields indexed")
	p.Failed("a.pdf", NewError(ErrCodeExtraction, "fulltext.extract", "a.pdf", errors.New("bad xref")))

	out := buf.String()
	assert.Contains(t, out, `msg="fields indexed" done=3 total=10`)
	assert.Contains(t, out, "item=a.pdf code=EXTRACTION_FAILED")
}
