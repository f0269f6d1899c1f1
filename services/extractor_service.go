package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/config"
)

// TextExtractor turns a PDF stream into one string with page markers.
type TextExtractor interface {
	ExtractText(r io.Reader) (string, error)
}

// pageSource is the per-page view both PDF backends are adapted to.
type pageSource interface {
	NumPages() (int, error)
	PageText(n int) (string, error)
}

// NewTextExtractor returns the backend named in the config.
func NewTextExtractor(cfg config.ExtractorConfig) (TextExtractor, error) {
	switch cfg.Type {
	case "pdf", "":
		return &PlainPDFExtractor{}, nil
	case "unipdf":
		return &UniPDFExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor: %s", cfg.Type)
	}
}

var unidocOnce sync.Once

// InitUniPDF registers the unidoc metered key once per process. It must run
// before the server accepts uploads when the unipdf backend is selected.
func InitUniPDF(cfg config.ExtractorConfig, log *zap.Logger) {
	unidocOnce.Do(func() {
		key := os.Getenv(cfg.UnidocLicenseEnv)
		if key == "" {
			log.Warn("unidoc license key not set, unipdf extraction will fail", zap.String("env", cfg.UnidocLicenseEnv))
			return
		}
		if err := license.SetMeteredKey(key); err != nil {
			log.Error("failed to set unidoc license key", zap.Error(err))
		}
	})
}

// joinPages writes "\n\n--- Page N ---\n<text>" for every page in order.
func joinPages(src pageSource) (string, error) {
	numPages, err := src.NumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		text, err := src.PageText(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		fmt.Fprintf(&sb, "\n\n--- Page %d ---\n%s", i, text)
	}
	return sb.String(), nil
}

// PlainPDFExtractor uses github.com/ledongthuc/pdf.
type PlainPDFExtractor struct{}

func (e *PlainPDFExtractor) ExtractText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %w", ErrExtractionFailed, err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	text, err := joinPages(ledongthucPages{reader})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return text, nil
}

type ledongthucPages struct {
	r *pdf.Reader
}

func (p ledongthucPages) NumPages() (int, error) { return p.r.NumPage(), nil }

func (p ledongthucPages) PageText(n int) (string, error) {
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// UniPDFExtractor uses UniPDF. InitUniPDF must have been called.
type UniPDFExtractor struct{}

func (e *UniPDFExtractor) ExtractText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %w", ErrExtractionFailed, err)
	}
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	text, err := joinPages(unipdfPages{pdfReader})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return text, nil
}

type unipdfPages struct {
	r *model.PdfReader
}

func (p unipdfPages) NumPages() (int, error) { return p.r.GetNumPages() }

func (p unipdfPages) PageText(n int) (string, error) {
	page, err := p.r.GetPage(n)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	return ex.ExtractText()
}

// CountPages returns how many page markers an extracted text carries.
func CountPages(text string) int {
	return strings.Count(text, "\n\n--- Page ")
}
