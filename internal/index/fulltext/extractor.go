package fulltext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor returns the text of a file, one string per page. Element i
// holds page i+1.
type Extractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// PDFExtractor extracts plain page text with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

func (PDFExtractor) ExtractPages(ctx context.Context, path string) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	// The reader panics on some malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			pages = nil
			err = fmt.Errorf("read pdf %s: %v", path, p)
		}
	}()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
