// Package extract turns uploaded documents into plain text. Extraction
// failures on supported formats yield empty text rather than errors; the
// analysis pipeline rejects empty text as unusable input.
package extract

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file extensions the extractor does
// not handle.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Text extracts plain text from the file at path based on its extension.
// PDFs are page-concatenated; .txt and .md are read verbatim. A corrupt or
// image-only PDF produces empty text, not an error.
func Text(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path), nil
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("read %s: %v", path, err)
			return "", nil
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func pdfText(path string) string {
	f, r, err := pdf.Open(path)
	if err != nil {
		log.Printf("open pdf %s: %v", path, err)
		return ""
	}
	defer f.Close()

	var content strings.Builder
	totalPages := r.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Keep going; a single bad page should not sink the document.
			continue
		}
		content.WriteString(text)
		content.WriteString("\n\n")
	}

	return strings.TrimSpace(content.String())
}
