// Package draft turns free-form text into a structured invoice draft using a
// generative model.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/calculator"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

var (
	// ErrEmptyPrompt is returned for blank input.
	ErrEmptyPrompt = errors.New("prompt is required and must be a non-empty string")
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("AI API key not configured")
	// ErrEmptyResponse is returned when a model produced no text.
	ErrEmptyResponse = errors.New("empty text returned from model")
	// ErrNoJSON is returned when the model text holds no JSON object.
	ErrNoJSON = errors.New("AI returned malformed response (no JSON found)")
	// ErrAllModelsFailed is returned when every model candidate errored.
	ErrAllModelsFailed = errors.New("AI generation failed")
)

// Generator produces text from a prompt with the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Item is one line of a draft.
type Item struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Qty         models.Number `json:"qty"`
	UnitPrice   models.Number `json:"unitPrice"`
}

// Client is the billed party of a draft.
type Client struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Invoice is the structured draft returned to the caller. It is not persisted.
type Invoice struct {
	InvoiceNumber    string        `json:"invoiceNumber"`
	IssueDate        string        `json:"issueDate"`
	DueDate          string        `json:"dueDate"`
	FromBusinessName string        `json:"fromBusinessName"`
	FromEmail        string        `json:"fromEmail"`
	FromAddress      string        `json:"fromAddress"`
	FromPhone        string        `json:"fromPhone"`
	Client           Client        `json:"client"`
	Items            []Item        `json:"items"`
	TaxPercent       models.Number `json:"taxPercent"`
	Notes            string        `json:"notes"`
	Subtotal         float64       `json:"subtotal"`
	Tax              float64       `json:"tax"`
	Total            float64       `json:"total"`
}

// Result is a decoded draft together with the model that produced it.
type Result struct {
	Invoice *Invoice
	Model   string
}

// Drafter tries model candidates in order until one returns text.
type Drafter struct {
	gen    Generator
	models []string
	now    func() time.Time
}

// New returns a Drafter. A nil gen means no API key is configured and every
// call fails with ErrNotConfigured.
func New(gen Generator, modelCandidates []string) *Drafter {
	return &Drafter{gen: gen, models: modelCandidates, now: time.Now}
}

// Draft builds the template prompt for text, asks the models and decodes the
// first JSON object of the answer. Totals are recomputed locally.
func (d *Drafter) Draft(ctx context.Context, text string) (*Result, error) {
	if d.gen == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	prompt := BuildPrompt(text, d.now())

	var (
		answer  string
		used    string
		lastErr error
	)
	for _, m := range d.models {
		out, err := d.gen.Generate(ctx, m, prompt)
		if err != nil {
			slog.Warn("Model failed", "model", m, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if strings.TrimSpace(out) != "" {
			answer, used = out, m
			break
		}
	}
	if answer == "" {
		if lastErr == nil {
			lastErr = errors.New("all candidate models failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrAllModelsFailed, lastErr)
	}

	jsonText, err := ExtractJSON(answer)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", used, err)
	}

	var inv Invoice
	if err := json.Unmarshal([]byte(jsonText), &inv); err != nil {
		return nil, fmt.Errorf("model %s: %w: %v", used, ErrNoJSON, err)
	}
	inv.applyTotals()

	return &Result{Invoice: &inv, Model: used}, nil
}

func (inv *Invoice) applyTotals() {
	items := make([]*calculator.Item, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = &calculator.Item{Quantity: float64(it.Qty), UnitPrice: float64(it.UnitPrice)}
	}
	totals := calculator.Compute(items, float64(inv.TaxPercent))
	inv.Subtotal, inv.Tax, inv.Total = totals.Subtotal, totals.Tax, totals.Total
}

// ExtractJSON returns the span from the first '{' to the last '}' of text.
func ExtractJSON(text string) (string, error) {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last <= first {
		return "", ErrNoJSON
	}
	return text[first : last+1], nil
}

type templateItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
}

type template struct {
	InvoiceNumber    string         `json:"invoiceNumber"`
	IssueDate        string         `json:"issueDate"`
	DueDate          string         `json:"dueDate"`
	FromBusinessName string         `json:"fromBusinessName"`
	FromEmail        string         `json:"fromEmail"`
	FromAddress      string         `json:"fromAddress"`
	FromPhone        string         `json:"fromPhone"`
	Client           Client         `json:"client"`
	Items            []templateItem `json:"items"`
	TaxPercent       float64        `json:"taxPercent"`
	Notes            string         `json:"notes"`
}

// BuildPrompt wraps the user's text in instructions and the draft schema.
func BuildPrompt(text string, now time.Time) string {
	schema, _ := json.MarshalIndent(template{
		InvoiceNumber: fmt.Sprintf("INV-%d", rand.Intn(9000)+1000),
		IssueDate:     now.Format(time.DateOnly),
		Items:         []templateItem{{ID: "1", Qty: 1}},
		TaxPercent:    models.DefaultProfileTaxPercent,
	}, "", "  ")

	return fmt.Sprintf(`
You are an invoice generation assistant.

Task:
  - Analyze the user's input text and produce a valid JSON object only (no explanatory text).
  - The JSON MUST match the schema below (include all fields even if empty).
  - Ensure all dates are ISO 'YYYY-MM-DD' strings and numeric fields are numbers.

Schema:
%s

User input:
%s

Output: valid JSON only (no surrounding code fences, no commentary).
`, schema, text)
}
