// Package resolve turns a feature request's pasted text or file reference
// into a single bounded text payload.
package resolve

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/logger"
)

const (
	// MaxContentChars bounds pasted text, measured before trimming.
	MaxContentChars = 50_000

	// MaxFileBytes bounds a downloaded object, matching the upload limit.
	MaxFileBytes = 10 << 20

	// ChatSeparator joins file text and pasted context for chat.
	ChatSeparator = "\n\n---\n\n"
)

// Source records where resolved text came from.
type Source string

const (
	SourceText Source = "text"
	SourceFile Source = "file"
)

// Request carries the two ways a caller can supply material.
type Request struct {
	Content string
	FileURL string
}

// Content is the resolved payload. FileURL is set only for SourceFile.
type Content struct {
	Text    string
	Source  Source
	FileURL string
}

// ObjectOpener fetches stored objects by key.
type ObjectOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor converts document bytes to text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format extract.Format) (string, error)
}

type Resolver struct {
	store     ObjectOpener
	extractor TextExtractor
	bucket    string
	log       *logger.Logger
}

func New(store ObjectOpener, extractor TextExtractor, bucket string, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{store: store, extractor: extractor, bucket: bucket, log: log}
}

// Resolve applies strict precedence: a non-empty FileURL wins and any failure
// on that path is returned as is, never falling back to Content.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Content, error) {
	if fileURL := strings.TrimSpace(req.FileURL); fileURL != "" {
		text, err := r.fromFile(ctx, fileURL)
		if err != nil {
			return Content{}, err
		}
		return Content{Text: text, Source: SourceFile, FileURL: fileURL}, nil
	}

	text, err := pasted(req.Content)
	if err != nil {
		return Content{}, err
	}
	if text == "" {
		return Content{}, errNoContent()
	}
	return Content{Text: text, Source: SourceText}, nil
}

// ResolveChat returns the context for a chat turn: file text, pasted text, or
// both joined by ChatSeparator. Chat may run without any context, in which
// case the result is empty.
func (r *Resolver) ResolveChat(ctx context.Context, req Request) (string, error) {
	extra, err := pasted(req.Content)
	if err != nil {
		return "", err
	}

	fileURL := strings.TrimSpace(req.FileURL)
	if fileURL == "" {
		return extra, nil
	}
	fileText, err := r.fromFile(ctx, fileURL)
	if err != nil {
		return "", err
	}
	if extra == "" {
		return fileText, nil
	}
	return fileText + ChatSeparator + extra, nil
}

// pasted validates raw pasted text and returns it trimmed. The length limit
// applies to the text as submitted.
func pasted(content string) (string, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return "", nil
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return "", errTooLong()
	}
	return text, nil
}

func (r *Resolver) fromFile(ctx context.Context, fileURL string) (string, error) {
	key, err := StoragePath(fileURL, r.bucket)
	if err != nil {
		return "", err
	}
	r.log.Debug("downloading study material", "bucket", r.bucket, "key", key)

	rc, err := r.store.Open(ctx, key)
	if err != nil {
		return "", errDownload(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileBytes+1))
	if err != nil {
		return "", errRead(err)
	}
	if len(data) > MaxFileBytes {
		r.log.Warn("stored object exceeds download limit", "key", key, "limit", MaxFileBytes)
		return "", errFileTooLarge()
	}

	format := extract.FormatFromName(key)
	r.log.Info("downloaded study material", "key", key, "bytes", len(data), "format", format.String())

	text, err := r.extractor.Extract(ctx, data, format)
	if err != nil {
		var xerr *extract.Error
		if errors.As(err, &xerr) {
			return "", errExtraction(xerr.Format, err)
		}
		return "", errExtraction(format, err)
	}
	return text, nil
}
