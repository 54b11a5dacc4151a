// Package extract turns uploaded document bytes into plain text.
//
// Supported formats, chosen by file extension:
//   - .pdf  page text, one line-joined block per page
//   - .docx paragraph text from word/document.xml
//   - .txt  UTF-8 passthrough
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "github.com/yanqian/docchat/pkg/errors"
)

// Format identifies a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"

	// FormatUnsupported labels files Detect rejects.
	FormatUnsupported Format = "unsupported"
)

// Extractor dispatches on the file extension.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the extensions Extract accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// Detect maps a filename to its Format.
func Detect(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt":
		return FormatTXT, nil
	default:
		return "", apperrors.Wrap(apperrors.CodeUnsupportedFormat, "Unsupported file type", nil)
	}
}

// Classify returns the detected format of filename, or FormatUnsupported.
// The result is safe to use as a bounded metric label.
func (e *Extractor) Classify(filename string) string {
	format, err := Detect(filename)
	if err != nil {
		return string(FormatUnsupported)
	}
	return string(format)
}

// Extract returns the plain text of data, interpreted according to filename.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	format, err := Detect(filename)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	case FormatTXT:
		text, err = extractText(data)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeExtractionFailed, fmt.Sprintf("extract %s", format), err)
	}
	return text, nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}
