// Package extract turns uploaded study documents into bounded plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/atlasstudy/atlas/internal/logger"
)

// MaxChars is the maximum number of characters (runes) returned by Extract.
const MaxChars = 50_000

var (
	// ErrNoText means the document parsed but contained no usable text.
	ErrNoText = errors.New("contains no extractable text")
	// ErrUnsupported means the document format is not one Atlas can read.
	ErrUnsupported = errors.New("unsupported document type")
)

// Format identifies a supported document type.
type Format int

const (
	PDF Format = iota
	Text
	Markdown
	DOCX
)

func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case Text:
		return "TXT"
	case Markdown:
		return "Markdown"
	case DOCX:
		return "DOCX"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	formatsByExt = map[string]Format{
		".pdf":  PDF,
		".txt":  Text,
		".md":   Markdown,
		".docx": DOCX,
	}
	formatsByMIME = map[string]Format{
		"application/pdf": PDF,
		"text/plain":      Text,
		"text/markdown":   Markdown,
		docxMIME:          DOCX,
	}
)

// Detect resolves a format from a MIME type or a file name. Either may match;
// the MIME type is consulted first.
func Detect(name, mimeType string) (Format, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if f, ok := formatsByMIME[mt]; ok {
		return f, true
	}
	f, ok := formatsByExt[strings.ToLower(path.Ext(name))]
	return f, ok
}

// FormatFromName picks a format from a storage path or file name, falling
// back to PDF when the extension is missing or unknown.
func FormatFromName(name string) Format {
	if f, ok := formatsByExt[strings.ToLower(path.Ext(name))]; ok {
		return f
	}
	return PDF
}

// Error is returned when a document yields no usable text.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrNoText) {
		return fmt.Sprintf("The %s appears to be empty or contains no extractable text.", e.Format)
	}
	return fmt.Sprintf("%s extraction: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor converts raw document bytes to text.
type Extractor struct {
	log *logger.Logger
}

// New returns an Extractor that reports truncation through log.
func New(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log}
}

// Extract reads data as the given format and returns trimmed text of at most
// MaxChars runes. Longer text is cut to a prefix and a warning is logged.
func (e *Extractor) Extract(ctx context.Context, data []byte, format Format) (string, error) {
	var (
		raw string
		err error
	)
	switch format {
	case PDF:
		raw, err = pdfText(ctx, data)
	case Text, Markdown:
		raw = plainText(data)
	case DOCX:
		raw, err = docxText(data)
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return "", &Error{Format: format, Err: err}
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &Error{Format: format, Err: ErrNoText}
	}

	if n := utf8.RuneCountInString(text); n > MaxChars {
		text = truncateRunes(text, MaxChars)
		e.log.Warn("extracted text truncated", "format", format.String(), "chars", n, "kept", MaxChars)
	}
	return text, nil
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func plainText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ToValidUTF8(s, "\ufffd")
}
