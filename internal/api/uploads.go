package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/objectstore"
	"github.com/atlasstudy/atlas/internal/resolve"
	"github.com/atlasstudy/atlas/internal/storage"
)

const (
	maxUploadSize     = resolve.MaxFileBytes
	multipartOverhead = 1 << 20
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// uploadKey is the object key for a user's upload: <user>/<unix ms>_<name>.
func uploadKey(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d_%s", userID, at.UnixMilli(), unsafeNameChars.ReplaceAllString(fileName, "_"))
}

func handleCreateUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+multipartOverhead)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				httpError(w, http.StatusBadRequest, "File too large. Maximum size is 10 MB.")
				return
			}
			httpError(w, http.StatusBadRequest, "invalid multipart body: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "No file provided.")
			return
		}
		defer file.Close()

		if header.Size > maxUploadSize {
			httpError(w, http.StatusBadRequest, "File too large. Maximum size is 10 MB.")
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if _, ok := extract.Detect(header.Filename, mimeType); !ok {
			httpError(w, http.StatusBadRequest, "Unsupported file type. Please upload PDF, TXT, MD, or DOCX.")
			return
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "failed to read uploaded file: %v", err)
			return
		}

		user := identity(r)
		if err := deps.Store.UpsertUser(r.Context(), storage.User{ID: user.UserID, Email: user.Email}); err != nil {
			writeError(w, deps.Log, err)
			return
		}

		key := uploadKey(user.UserID, deps.now(), header.Filename)
		if err := deps.Objects.Upload(r.Context(), key, data, mimeType); err != nil {
			deps.Log.Error("object upload failed", "key", key, "error", err)
			httpError(w, http.StatusInternalServerError, "Storage error: %v", err)
			return
		}

		upload, err := deps.Store.CreateUpload(r.Context(), storage.Upload{
			UserID:   user.UserID,
			FileURL:  deps.Objects.PublicURL(key),
			FileName: header.Filename,
		})
		if err != nil {
			deps.Log.Error("recording upload failed", "key", key, "error", err)
			httpError(w, http.StatusInternalServerError, "Database error: %v", err)
			return
		}

		deps.Log.Info("file uploaded", "user", user.UserID, "key", key, "bytes", len(data))
		writeJSON(w, http.StatusCreated, upload)
	}
}

func handleListUploads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploads, err := deps.Store.ListUploads(r.Context(), identity(r).UserID)
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}
		if uploads == nil {
			uploads = []storage.Upload{}
		}
		writeJSON(w, http.StatusOK, uploads)
	}
}

// handleDeleteUpload accepts the id either as a path segment or as ?id=.
func handleDeleteUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			id = r.URL.Query().Get("id")
		}
		if id == "" {
			httpError(w, http.StatusBadRequest, "Upload ID is required.")
			return
		}

		userID := identity(r).UserID
		upload, err := deps.Store.GetUpload(r.Context(), userID, id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Upload not found.")
			return
		}
		if err != nil {
			writeError(w, deps.Log, err)
			return
		}

		// Only objects in our bucket are removed; the record goes either way.
		bucket := deps.Objects.Bucket()
		if strings.Contains(upload.FileURL, objectstore.PublicPrefix+bucket+"/") {
			if key, err := resolve.StoragePath(upload.FileURL, bucket); err == nil {
				if err := deps.Objects.Remove(r.Context(), key); err != nil {
					deps.Log.Warn("object removal failed", "key", key, "error", err)
				}
			}
		}

		if err := deps.Store.DeleteUpload(r.Context(), userID, id); err != nil {
			writeError(w, deps.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// handlePublicObject serves stored objects at their public URL.
func handlePublicObject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != deps.Objects.Bucket() {
			httpError(w, http.StatusNotFound, "Object not found.")
			return
		}
		key := chi.URLParam(r, "*")

		data, err := objectstore.Download(r.Context(), deps.Objects, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Object not found.")
			return
		}
		if err != nil {
			deps.Log.Warn("object read failed", "key", key, "error", err)
			httpError(w, http.StatusBadRequest, "invalid object key")
			return
		}

		if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(data))
	}
}
