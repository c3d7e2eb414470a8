package ingest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts per-page plain text from a PDF document.
type PDFParser struct{}

// Parse returns one text extract per page, in page order. The pdf library
// panics on some malformed inputs, so the whole extraction is guarded.
func (PDFParser) Parse(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("malformed pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return pages, nil
}
