// Package uploads stores logo, stamp and signature images on local disk and
// serves them back under /uploads/.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 10 << 20

// ErrTooLarge is returned when an upload exceeds MaxFileSize.
var ErrTooLarge = errors.New("upload exceeds 10MB limit")

// Form field names accepted for each asset, in priority order.
var (
	logoFields      = []string{"logoName", "logo"}
	stampFields     = []string{"stampName", "stamp"}
	signatureFields = []string{"signatureNameMeta", "signature"}
)

var allowedExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// URLs holds the public links of the assets stored from one request.
// Empty fields mean no file was uploaded for that asset.
type URLs struct {
	Logo      string
	Stamp     string
	Signature string
}

// Store writes uploaded files into a directory.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates dir if needed. baseURL is the public origin the
// directory is served from, without the /uploads suffix.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes r under a random name that keeps the original extension and
// returns the file's public URL.
func (s *Store) Save(prefix, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExt[ext] {
		ext = ""
	}
	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxFileSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return s.baseURL + "/uploads/" + name, nil
}

// SaveForm stores the logo, stamp and signature files of a parsed multipart
// form. Requests without a multipart form yield empty URLs.
func (s *Store) SaveForm(form *multipart.Form) (URLs, error) {
	var urls URLs
	if form == nil {
		return urls, nil
	}

	targets := []struct {
		fields []string
		prefix string
		dst    *string
	}{
		{logoFields, "logo", &urls.Logo},
		{stampFields, "stamp", &urls.Stamp},
		{signatureFields, "signature", &urls.Signature},
	}
	for _, t := range targets {
		fh := firstFile(form, t.fields)
		if fh == nil {
			continue
		}
		if fh.Size > MaxFileSize {
			s.Remove(urls)
			return URLs{}, ErrTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			s.Remove(urls)
			return URLs{}, fmt.Errorf("failed to open %s upload: %w", t.prefix, err)
		}
		url, err := s.Save(t.prefix, fh.Filename, f)
		f.Close()
		if err != nil {
			s.Remove(urls)
			return URLs{}, err
		}
		*t.dst = url
	}
	return urls, nil
}

func firstFile(form *multipart.Form, fields []string) *multipart.FileHeader {
	for _, name := range fields {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// Remove deletes the files behind urls. URLs that do not point into this
// store are ignored.
func (s *Store) Remove(urls URLs) {
	prefix := s.baseURL + "/uploads/"
	for _, u := range []string{urls.Logo, urls.Stamp, urls.Signature} {
		name, ok := strings.CutPrefix(u, prefix)
		if !ok || name == "" || strings.ContainsAny(name, `/\`) {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}

// Handler serves stored files. Mount it with http.StripPrefix("/uploads/", ...).
// Directories are never listed.
func (s *Store) Handler() http.Handler {
	return http.FileServer(filesOnly{http.Dir(s.dir)})
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
