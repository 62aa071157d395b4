package extract

import (
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultPDFPageLimit bounds how many pages of a PDF are inspected, to
// keep extraction latency bounded on large documents.
const DefaultPDFPageLimit = 5

// pdfText extracts the text layer from a bounded prefix of the PDF's
// pages. Image-only PDFs return "", signalling the caller to fall back to
// OCR. The pdf library panics on some malformed files, so the whole walk
// is recovered.
func pdfText(path string, maxPages int, logger *slog.Logger) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("PDF text extraction panicked",
				slog.String("path", path),
				slog.Any("panic", r))
			text = ""
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		logger.Debug("open PDF failed", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages > maxPages {
		numPages = maxPages
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Some pages fail to parse; keep going.
			continue
		}

		if pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(pageText)
		}
	}

	return sb.String()
}
