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

// maxDocumentXML bounds the decompressed size of word/document.xml.
var maxDocumentXML int64 = 64 << 20

// docxText reads word/document.xml and returns one line per paragraph. Every
// w:t element is visited, so text inside tables, text boxes and content
// controls is kept.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening DOCX archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		defer rc.Close()

		lr := &io.LimitedReader{R: rc, N: maxDocumentXML + 1}
		text, err := docxWalk(xml.NewDecoder(lr))
		if lr.N <= 0 {
			return "", fmt.Errorf("document.xml exceeds %d bytes", maxDocumentXML)
		}
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}
		return text, nil
	}
	return "", errors.New("word/document.xml not found")
}

func docxWalk(dec *xml.Decoder) (string, error) {
	var (
		sb     strings.Builder
		inText bool
		inRun  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				// w:tab also appears in paragraph tab stop definitions.
				if inRun > 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if inRun > 0 {
					sb.WriteByte('\n')
				}
			case "p":
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "r":
				inRun--
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
}
