package resolve

import (
	"net/url"
	"strings"

	"github.com/atlasstudy/atlas/internal/objectstore"
)

// StoragePath derives the bucket-relative object key from a public object
// URL. Inputs that do not look like URLs are taken to be keys already.
func StoragePath(fileURL, bucket string) (string, error) {
	prefix := objectstore.PublicPrefix + bucket + "/"
	if i := strings.Index(fileURL, prefix); i >= 0 {
		return decodeKey(fileURL[i+len(prefix):])
	}

	if !strings.HasPrefix(fileURL, "http") {
		return fileURL, nil
	}

	u, err := url.Parse(fileURL)
	if err != nil {
		return "", errLocator()
	}
	parts := strings.Split(u.EscapedPath(), "/"+bucket+"/")
	if len(parts) != 2 {
		return "", errLocator()
	}
	return decodeKey(parts[1])
}

func decodeKey(escaped string) (string, error) {
	key, err := url.PathUnescape(escaped)
	if err != nil || key == "" {
		return "", errLocator()
	}
	return key, nil
}
