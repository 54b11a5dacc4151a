package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// Subtrees whose content is not paragraph text: tab stop and style definitions,
// and text boxes, which alternate-content markup repeats once per rendering.
var skippedElements = map[string]struct{}{
	"pPr":         {},
	"rPr":         {},
	"txbxContent": {},
}

// WordprocessingML namespaces for transitional and strict documents.
var wordNamespaces = map[string]struct{}{
	"http://schemas.openxmlformats.org/wordprocessingml/2006/main": {},
	"http://purl.oclc.org/ooxml/wordprocessingml/main":             {},
}

// extractDOCX returns the body paragraphs of a .docx file joined with newlines.
// Paragraphs nested in tables, headers or text boxes are not part of the body.
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("docx archive has no " + documentPart)
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", documentPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", documentPart, err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inBodyPara bool
		skipped    int
	)
	parent := func() string {
		if len(stack) < 2 {
			return ""
		}
		return stack[len(stack)-2]
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			name := wordLocal(el.Name)
			stack = append(stack, name)
			if _, ok := skippedElements[name]; ok {
				skipped++
				continue
			}
			inRun := inBodyPara && skipped == 0 && parent() == "r"
			switch name {
			case "p":
				if parent() == "body" {
					inBodyPara = true
					current.Reset()
				}
			case "tab":
				if inRun {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			if _, ok := skippedElements[name]; ok {
				skipped--
			}
			if name == "p" && inBodyPara && parent() == "body" {
				paragraphs = append(paragraphs, current.String())
				inBodyPara = false
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if inBodyPara && skipped == 0 && len(stack) > 0 && stack[len(stack)-1] == "t" {
				current.Write(el)
			}
		}
	}
	return paragraphs, nil
}

// wordLocal returns the local name for WordprocessingML elements and "" for anything else.
func wordLocal(name xml.Name) string {
	if _, ok := wordNamespaces[name.Space]; ok {
		return name.Local
	}
	return ""
}
