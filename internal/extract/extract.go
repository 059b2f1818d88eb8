package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrExtractionFailed wraps every reason a payload could not be turned into text.
var ErrExtractionFailed = errors.New("extraction failed")

// Result is the plain text and page count of a PDF.
type Result struct {
	Text      string
	PageCount int
}

// PDFExtractor parses PDFs fully in memory. pdfcpu validates the file and
// counts pages; ledongthuc/pdf pulls the text page by page.
type PDFExtractor struct{}

var disableConfigDir sync.Once

// Extract returns the text and page count of data. The parsers do not take a
// context, so they run on their own goroutine and Extract returns as soon as
// ctx is done. An abandoned parse finishes in the background.
func (PDFExtractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty payload", ErrExtractionFailed)
	}
	return bounded(ctx, func() (Result, error) { return parse(ctx, data) })
}

type outcome struct {
	res Result
	err error
}

func bounded(ctx context.Context, fn func() (Result, error)) (Result, error) {
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: fmt.Errorf("%w: parser panic: %v", ErrExtractionFailed, r)}
			}
			done <- out
		}()
		out.res, out.err = fn()
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func parse(ctx context.Context, data []byte) (Result, error) {
	pages, err := countPages(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if pages == 0 {
		return Result{}, fmt.Errorf("%w: document has no pages", ErrExtractionFailed)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	text, err := pageText(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return Result{Text: text, PageCount: pages}, nil
}

func countPages(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	return n, nil
}

func pageText(ctx context.Context, data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(cleanText(b.String())), nil
}

// cleanText makes parser output storable in a Postgres text column, which
// rejects invalid UTF-8 and NUL bytes.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}
