package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// maxUploadBytes bounds a single staged attachment.
const maxUploadBytes = 50 << 20

// Uploads stages attachment files on disk until the page they belong to is
// created or updated. Staged files are keyed by a random id; the original
// filename travels to the external store on promotion.
type Uploads struct {
	dir   string
	mu    sync.Mutex
	names map[string]string
}

// NewUploads prepares the staging directory.
func NewUploads(dir string) (*Uploads, error) {
	if dir == "" {
		return nil, eris.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating upload directory %s", dir)
	}

	return &Uploads{dir: dir, names: make(map[string]string)}, nil
}

// Save stores the content under a fresh id and remembers the original name.
func (u *Uploads) Save(fileName string, data io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." {
		return "", eris.New("file name is required")
	}

	id := uuid.NewString()
	file, err := os.Create(filepath.Join(u.dir, id))
	if err != nil {
		return "", eris.Wrap(err, "creating staged file")
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		_ = os.Remove(file.Name())
		return "", eris.Wrap(err, "writing staged file")
	}

	u.mu.Lock()
	u.names[id] = name
	u.mu.Unlock()

	return id, nil
}

// Open returns the staged content and its original filename.
func (u *Uploads) Open(id string) (io.ReadCloser, string, error) {
	u.mu.Lock()
	name, ok := u.names[id]
	u.mu.Unlock()
	if !ok {
		return nil, "", eris.Errorf("unknown staged upload %s", id)
	}

	file, err := os.Open(filepath.Join(u.dir, id))
	if err != nil {
		return nil, "", eris.Wrap(err, "opening staged file")
	}

	return file, name, nil
}

// Remove discards a staged upload.
func (u *Uploads) Remove(id string) {
	u.mu.Lock()
	delete(u.names, id)
	u.mu.Unlock()

	_ = os.Remove(filepath.Join(u.dir, id))
}

// uploadHandler stages one multipart attachment and returns its id. Served
// outside Huma because streaming multipart bodies through the typed API
// buys nothing here.
func (s *Server) uploadHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if s.uploads == nil {
		stdhttp.Error(w, "uploads are not configured", stdhttp.StatusNotImplemented)
		return
	}

	user, err := s.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		stdhttp.Error(w, "authentication required", stdhttp.StatusUnauthorized)
		return
	}

	r.Body = stdhttp.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		stdhttp.Error(w, "a file form field is required", stdhttp.StatusBadRequest)
		return
	}
	defer file.Close()

	id, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		s.recordError(r.Context(), err, "staging upload", nil)
		stdhttp.Error(w, "could not store the upload", stdhttp.StatusInternalServerError)
		return
	}

	if s.logger != nil {
		s.logger.WithField("user", user.Username).WithField("file", header.Filename).Debug("staged upload")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(stdhttp.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":       id,
		"fileName": header.Filename,
	})
}

func bearerToken(r *stdhttp.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
