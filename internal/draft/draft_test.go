package draft

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// stubGenerator answers per model; models without an entry fail.
type stubGenerator struct {
	answers map[string]string
	calls   []string
}

func (s *stubGenerator) Generate(_ context.Context, model, _ string) (string, error) {
	s.calls = append(s.calls, model)
	if out, ok := s.answers[model]; ok {
		return out, nil
	}
	return "", errors.New("model unavailable")
}

const draftJSON = `{"invoiceNumber":"INV-4821","issueDate":"2026-03-01","client":{"name":"Acme"},
"items":[{"id":"1","description":"Logo design","qty":2,"unitPrice":"150.5"}],"taxPercent":10,"notes":"thanks"}`

func TestDraftFallsBackAcrossModels(t *testing.T) {
	gen := &stubGenerator{answers: map[string]string{
		"gemini-2.0-flash": "Here you go:\n```json\n" + draftJSON + "\n```",
	}}
	d := New(gen, []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0"})

	res, err := d.Draft(context.Background(), "two logos for Acme at 150.50 each")
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if res.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q, want gemini-2.0-flash", res.Model)
	}
	if strings.Join(gen.calls, ",") != "gemini-2.5-flash,gemini-2.0-flash" {
		t.Errorf("calls = %v", gen.calls)
	}

	inv := res.Invoice
	if inv.Client.Name != "Acme" || len(inv.Items) != 1 || inv.Items[0].UnitPrice != 150.5 {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.Subtotal != 301 || inv.Tax != 30.1 || inv.Total != 331.1 {
		t.Errorf("totals = %v/%v/%v, want 301/30.1/331.1", inv.Subtotal, inv.Tax, inv.Total)
	}
}

func TestDraftErrors(t *testing.T) {
	tests := []struct {
		name    string
		gen     Generator
		prompt  string
		wantErr error
	}{
		{"no key", nil, "hello", ErrNotConfigured},
		{"blank prompt", &stubGenerator{}, "   ", ErrEmptyPrompt},
		{"all models fail", &stubGenerator{}, "hello", ErrAllModelsFailed},
		{"no json", &stubGenerator{answers: map[string]string{"m": "sorry, I cannot"}}, "hello", ErrNoJSON},
		{"broken json", &stubGenerator{answers: map[string]string{"m": "{not json}"}}, "hello", ErrNoJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.gen, []string{"m"}).Draft(context.Background(), tt.prompt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Draft() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"a":1}`, `{"a":1}`, false},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`, false},
		{"no braces", "", true},
		{"} backwards {", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractJSON(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractJSON(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("bill Acme for hosting", time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{`"issueDate": "2026-05-04"`, `"taxPercent": 18`, `"invoiceNumber": "INV-`, "bill Acme for hosting"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGeminiClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "k" {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"error":{"code":403,"message":"bad key"}}`)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/models/good:generateContent":
			io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`)
		case "/models/empty:generateContent":
			io.WriteString(w, `{"candidates":[]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":404,"message":"model not found"}}`)
		}
	}))
	defer srv.Close()

	c := NewGeminiClient("k", srv.URL)
	ctx := context.Background()

	got, err := c.Generate(ctx, "good", "p")
	if err != nil || got != `{"a":1}` {
		t.Errorf("Generate(good) = %q, %v", got, err)
	}
	if _, err := c.Generate(ctx, "empty", "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate(empty) error = %v, want ErrEmptyResponse", err)
	}
	if _, err := c.Generate(ctx, "missing", "p"); err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("Generate(missing) error = %v", err)
	}
	if _, err := NewGeminiClient("wrong", srv.URL).Generate(ctx, "good", "p"); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("Generate(wrong key) error = %v", err)
	}
}
