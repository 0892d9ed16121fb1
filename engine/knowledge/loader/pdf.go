package loader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/janus-koncepts/wabot/engine/knowledge/chunk"
)

func loadPDF(ctx context.Context, path string) (docs []chunk.Document, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("loader: parse pdf %q: %v", path, r)
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open pdf %q: %w", path, err)
	}
	defer file.Close()
	base := filepath.Base(path)
	total := reader.NumPage()
	docs = make([]chunk.Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("loader: extract page %d of %q: %w", i, path, err)
		}
		docs = append(docs, chunk.Document{
			ID:       fmt.Sprintf("%s#%d", base, i),
			Text:     text,
			Metadata: map[string]any{MetaPage: i},
		})
	}
	return docs, nil
}
