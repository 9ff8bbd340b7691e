// Package loader abstracts the byte-level document layer. The pipeline only
// ever sees ordered page text; PDF parsing and OCR fallback live behind the
// DocumentLoader interface.
package loader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Page is one page of extracted text.
type Page struct {
	Text   string
	Number int
}

// DocumentLoader turns a file into ordered page text.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// AcceptedTypes are the upload content types the boundary admits.
var AcceptedTypes = []string{"application/pdf", "text/plain"}

// ValidateFile sniffs the file content type and rejects anything the
// pipeline cannot process. Wrong file type is an input error, never retried.
func ValidateFile(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("loader: detect type: %w", err)
	}
	for _, accepted := range AcceptedTypes {
		if mtype.Is(accepted) {
			return nil
		}
	}
	return fmt.Errorf("loader: unsupported file type %s", mtype.String())
}

// TextLoader reads plain-text documents, splitting pages on form feeds. It is
// the development stand-in for the external PDF/OCR loader.
type TextLoader struct {
	// PageSize bounds a page when the document has no form feeds.
	PageSize int
}

const defaultPageSize = 4000

func (l *TextLoader) Load(ctx context.Context, path string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loader: read: %w", err)
	}

	text := sb.String()
	if strings.Contains(text, "\f") {
		parts := strings.Split(text, "\f")
		pages := make([]Page, 0, len(parts))
		for i, part := range parts {
			pages = append(pages, Page{Text: part, Number: i + 1})
		}
		return pages, nil
	}

	size := l.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	runes := []rune(text)
	var pages []Page
	for start, number := 0, 1; start < len(runes); number++ {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pages = append(pages, Page{Text: string(runes[start:end]), Number: number})
		start = end
	}
	if len(pages) == 0 {
		pages = []Page{{Text: "", Number: 1}}
	}
	return pages, nil
}

// Concat joins page text in order for chunking. Chunk boundaries are
// independent of page boundaries.
func Concat(pages []Page) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
