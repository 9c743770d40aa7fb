package resolve

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/objectstore"
)

const bucket = "study-materials"

type memStore struct {
	objects map[string][]byte
	opened  []string
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.opened = append(m.opened, key)
	data, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

type brokenBodyStore struct{}

func (brokenBodyStore) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(failingReader{}), nil
}

func newResolver(objects map[string][]byte) (*Resolver, *memStore) {
	store := &memStore{objects: objects}
	return New(store, extract.New(nil), bucket, nil), store
}

func errKind(t *testing.T, err error) Kind {
	t.Helper()
	var rerr *Error
	require.True(t, errors.As(err, &rerr), "want *resolve.Error, got %T: %v", err, err)
	return rerr.Kind
}

func TestResolvePastedText(t *testing.T) {
	r, _ := newResolver(nil)

	got, err := r.Resolve(context.Background(), Request{Content: "  Newton's laws of motion \n"})
	require.NoError(t, err)
	assert.Equal(t, Content{Text: "Newton's laws of motion", Source: SourceText}, got)
}

func TestResolvePastedTextAtLimit(t *testing.T) {
	r, _ := newResolver(nil)
	content := strings.Repeat("ß", MaxContentChars)

	got, err := r.Resolve(context.Background(), Request{Content: content})
	require.NoError(t, err)
	assert.Equal(t, content, got.Text)
}

func TestResolvePastedTextTooLong(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), Request{Content: strings.Repeat("a", MaxContentChars+1)})
	require.Error(t, err)
	assert.Equal(t, KindTooLong, errKind(t, err))
	assert.Equal(t, "Content is too long. Please limit to 50 000 characters.", err.Error())
}

func TestResolveLengthCountsUntrimmedInput(t *testing.T) {
	r, _ := newResolver(nil)
	content := "  " + strings.Repeat("a", MaxContentChars-1) + "  "

	_, err := r.Resolve(context.Background(), Request{Content: content})
	assert.Equal(t, KindTooLong, errKind(t, err))
}

func TestResolveNothing(t *testing.T) {
	r, _ := newResolver(nil)

	for _, req := range []Request{{}, {Content: "   "}, {FileURL: "  ", Content: "\n"}} {
		_, err := r.Resolve(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, KindNoContent, errKind(t, err))
		assert.Equal(t, "No content provided. Please paste text or select an uploaded file.", err.Error())
	}
}

func TestResolveFilePriority(t *testing.T) {
	r, store := newResolver(map[string][]byte{
		"u1/42_notes.txt": []byte("  file text  "),
	})
	url := "https://host/storage/v1/object/public/study-materials/u1/42_notes.txt"

	got, err := r.Resolve(context.Background(), Request{FileURL: url, Content: "pasted text"})
	require.NoError(t, err)
	assert.Equal(t, Content{Text: "file text", Source: SourceFile, FileURL: url}, got)
	assert.Equal(t, []string{"u1/42_notes.txt"}, store.opened)
}

func TestResolveFileFailureDoesNotFallBack(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), Request{FileURL: "u1/missing.pdf", Content: "pasted text"})
	require.Error(t, err)
	assert.Equal(t, KindDownload, errKind(t, err))
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to download file from storage: "))
}

func TestResolveReadFailure(t *testing.T) {
	r := New(brokenBodyStore{}, extract.New(nil), bucket, nil)

	_, err := r.Resolve(context.Background(), Request{FileURL: "u1/a.pdf"})
	assert.Equal(t, KindRead, errKind(t, err))
	assert.Equal(t, "Failed to read the downloaded file into memory.", err.Error())
}

func TestResolveFileOverDownloadLimit(t *testing.T) {
	r, _ := newResolver(map[string][]byte{
		"u1/huge.txt": bytes.Repeat([]byte("a"), MaxFileBytes+1),
	})

	_, err := r.Resolve(context.Background(), Request{FileURL: "u1/huge.txt"})
	require.Error(t, err)
	assert.Equal(t, KindRead, errKind(t, err))
	assert.Equal(t, "File is too large. Maximum size is 10 MB.", err.Error())
}

func TestResolveFileAtDownloadLimit(t *testing.T) {
	r, _ := newResolver(map[string][]byte{
		"u1/big.txt": bytes.Repeat([]byte("a"), MaxFileBytes),
	})

	got, err := r.Resolve(context.Background(), Request{FileURL: "u1/big.txt"})
	require.NoError(t, err)
	assert.Equal(t, extract.MaxChars, len(got.Text))
}

func TestResolveExtractionFailure(t *testing.T) {
	r, _ := newResolver(map[string][]byte{
		"u1/scan.pdf":  []byte("not really a pdf"),
		"u1/empty.txt": []byte("   "),
	})

	_, err := r.Resolve(context.Background(), Request{FileURL: "u1/scan.pdf"})
	assert.Equal(t, KindExtraction, errKind(t, err))
	assert.True(t, strings.HasPrefix(err.Error(), "PDF text extraction failed: "))

	_, err = r.Resolve(context.Background(), Request{FileURL: "u1/empty.txt"})
	assert.Equal(t, KindExtraction, errKind(t, err))
	assert.ErrorIs(t, err, extract.ErrNoText)
}

func TestResolveBadLocator(t *testing.T) {
	r, store := newResolver(nil)

	_, err := r.Resolve(context.Background(), Request{FileURL: "https://example.com/other/file.pdf"})
	assert.Equal(t, KindLocator, errKind(t, err))
	assert.Empty(t, store.opened)
}

func TestResolveChat(t *testing.T) {
	r, _ := newResolver(map[string][]byte{"u1/notes.md": []byte("# Cells")})
	ctx := context.Background()

	got, err := r.ResolveChat(ctx, Request{FileURL: "u1/notes.md", Content: "  focus on mitochondria "})
	require.NoError(t, err)
	assert.Equal(t, "# Cells"+ChatSeparator+"focus on mitochondria", got)

	got, err = r.ResolveChat(ctx, Request{FileURL: "u1/notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Cells", got)

	got, err = r.ResolveChat(ctx, Request{Content: "only pasted"})
	require.NoError(t, err)
	assert.Equal(t, "only pasted", got)

	got, err = r.ResolveChat(ctx, Request{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.ResolveChat(ctx, Request{Content: strings.Repeat("a", MaxContentChars+1)})
	assert.Equal(t, KindTooLong, errKind(t, err))
}

func TestStoragePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"public url", "https://host/storage/v1/object/public/study-materials/u1/42_file.pdf", "u1/42_file.pdf", false},
		{"bare path", "u1/42_file.pdf", "u1/42_file.pdf", false},
		{"encoded", "https://host/storage/v1/object/public/study-materials/u1/42_my%20notes.pdf", "u1/42_my notes.pdf", false},
		{"other prefix", "https://cdn.example.com/files/study-materials/u1/a.pdf", "u1/a.pdf", false},
		{"unrelated url", "https://example.com/images/cat.png", "", true},
		{"bucket twice", "https://example.com/study-materials/x/study-materials/y", "", true},
		{"empty key", "https://host/storage/v1/object/public/study-materials/", "", true},
		{"bad escape", "https://host/storage/v1/object/public/study-materials/u1/%zz.pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StoragePath(tt.in, bucket)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindLocator, errKind(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
