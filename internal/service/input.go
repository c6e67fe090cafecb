package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

// maxBodySize bounds request bodies, including inline data-URL images.
const maxBodySize = 50 << 20

// maxMemory is the multipart size kept in memory before spilling to disk.
const maxMemory = 32 << 20

var (
	errTooLarge   = errors.New("payload too large")
	errBadRequest = errors.New("malformed request body")
)

// fields holds the top-level values of a JSON, urlencoded or multipart body.
// Form values are stored as JSON strings so both sources decode the same way.
type fields map[string]json.RawMessage

// readFields parses the request body. The multipart form, if any, is
// returned for file extraction.
func readFields(w http.ResponseWriter, r *http.Request) (fields, *multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, nil, bodyError(err)
		}
		return fromValues(r.MultipartForm.Value), r.MultipartForm, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, bodyError(err)
		}
		return fromValues(r.PostForm), nil, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, bodyError(err)
	}
	f := fields{}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, errBadRequest
	}
	return f, nil, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errTooLarge
	}
	return errBadRequest
}

func fromValues(values map[string][]string) fields {
	f := make(fields, len(values))
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		raw, _ := json.Marshal(v[0])
		f[k] = raw
	}
	return f
}

// has reports whether key was supplied with a non-null value.
func (f fields) has(key string) bool {
	raw, ok := f[key]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// str returns the value of key as a string. Numbers and booleans are
// returned as written.
func (f fields) str(key string) (string, bool) {
	if !f.has(key) {
		return "", false
	}
	raw := bytes.TrimSpace(f[key])
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
		return "", true
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", true
	}
	return string(raw), true
}

// strOr returns the value of key, or def when absent.
func (f fields) strOr(key, def string) string {
	if s, ok := f.str(key); ok {
		return s
	}
	return def
}

// firstStr returns the first non-empty string among keys.
func (f fields) firstStr(keys ...string) string {
	for _, k := range keys {
		if s, _ := f.str(k); s != "" {
			return s
		}
	}
	return ""
}

// firstNumber returns the first supplied number among keys. Unparsable
// values count as supplied zeros.
func (f fields) firstNumber(keys ...string) (float64, bool) {
	for _, k := range keys {
		if !f.has(k) {
			continue
		}
		var n models.Number
		_ = json.Unmarshal(f[k], &n)
		return float64(n), true
	}
	return 0, false
}

// flexString decodes JSON strings, numbers and booleans as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if isNull(data) {
		*s = ""
		return nil
	}
	*s = flexString(data)
	return nil
}

type itemInput struct {
	ID          flexString    `json:"id"`
	Description flexString    `json:"description"`
	Qty         models.Number `json:"qty"`
	UnitPrice   models.Number `json:"unitPrice"`
}

type clientInput struct {
	Name    flexString `json:"name"`
	Email   flexString `json:"email"`
	Address flexString `json:"address"`
	Phone   flexString `json:"phone"`
}

// items decodes the items field, which may be an array or a JSON string
// holding one. Anything undecodable yields an empty list.
func (f fields) items() ([]models.LineItem, bool) {
	if !f.has("items") {
		return nil, false
	}
	raw := bytes.TrimSpace(f["items"])
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return []models.LineItem{}, true
		}
		raw = []byte(s)
	}

	var in []*itemInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return []models.LineItem{}, true
	}
	used := make(map[string]bool, len(in))
	for _, it := range in {
		if it != nil {
			used[strings.TrimSpace(string(it.ID))] = true
		}
	}
	items := make([]models.LineItem, 0, len(in))
	for _, it := range in {
		if it == nil {
			continue
		}
		id := strings.TrimSpace(string(it.ID))
		if id == "" {
			// Positional ids skip any id supplied elsewhere in the list.
			for n := len(items) + 1; ; n++ {
				if id = strconv.Itoa(n); !used[id] {
					break
				}
			}
			used[id] = true
		}
		items = append(items, models.LineItem{
			ID:          id,
			Description: string(it.Description),
			Quantity:    float64(it.Qty),
			UnitPrice:   float64(it.UnitPrice),
		})
	}
	return items, true
}

// client decodes the client field. A plain non-empty string is taken as the
// client name; an empty string counts as not supplied.
func (f fields) client() (models.Client, bool) {
	if !f.has("client") {
		return models.Client{}, false
	}
	raw := bytes.TrimSpace(f["client"])
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.Client{}, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return models.Client{}, false
		}
		if !strings.HasPrefix(s, "{") {
			return models.Client{Name: s}, true
		}
		raw = []byte(s)
	}

	var in clientInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return models.Client{}, false
	}
	return models.Client{
		Name:    string(in.Name),
		Email:   string(in.Email),
		Address: string(in.Address),
		Phone:   string(in.Phone),
	}, true
}
