package memos

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType means the file extension has no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyDocument means extraction produced too little text to analyze.
	ErrEmptyDocument = errors.New("document appears to be empty or unreadable")
)

const minExtractedLen = 50

// ExtractText pulls plain text out of an uploaded memo. Plain text and
// markdown pass through; .pdf uses the embedded text layer; .docx is
// unpacked from its XML.
func ExtractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt", ".md":
		text := strings.TrimSpace(string(data))
		if len(text) < minExtractedLen {
			return "", ErrEmptyDocument
		}
		return text, nil
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, path.Ext(filename))
	}
}

// extractPDF reads the text layer page by page. A PDF that parses but
// yields almost no text is a scan of images, not prose the analyzer can
// use, and is rejected the same way as an empty document.
func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	text = strings.TrimSpace(sb.String())
	if len(text) < minExtractedLen {
		return "", fmt.Errorf("%w: no text layer, file may be scanned images", ErrEmptyDocument)
	}
	return text, nil
}

// extractDocx reads word/document.xml out of the docx zip container and
// joins paragraph text with blank lines.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx missing word/document.xml")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	text, err := docxParagraphs(rc)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(text)) < minExtractedLen {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
