package service

import (
	"encoding/json"
	"testing"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

func parseFields(t *testing.T, body string) fields {
	t.Helper()
	f := fields{}
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("invalid test body: %v", err)
	}
	return f
}

func TestFieldsItems(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []models.LineItem
		present bool
	}{
		{"absent", `{}`, nil, false},
		{"null", `{"items":null}`, nil, false},
		{"array", `{"items":[{"id":"x","description":"A","qty":2,"unitPrice":"1.5"}]}`,
			[]models.LineItem{{ID: "x", Description: "A", Quantity: 2, UnitPrice: 1.5}}, true},
		{"json string", `{"items":"[{\"qty\":\"3\",\"unitPrice\":2}]"}`,
			[]models.LineItem{{ID: "1", Quantity: 3, UnitPrice: 2}}, true},
		{"null entries skipped", `{"items":[null,{"qty":1,"unitPrice":1}]}`,
			[]models.LineItem{{ID: "1", Quantity: 1, UnitPrice: 1}}, true},
		{"generated ids skip supplied ones", `{"items":[{"id":"2","qty":1,"unitPrice":1},{"qty":1,"unitPrice":1},{"qty":2,"unitPrice":1}]}`,
			[]models.LineItem{{ID: "2", Quantity: 1, UnitPrice: 1}, {ID: "3", Quantity: 1, UnitPrice: 1}, {ID: "4", Quantity: 2, UnitPrice: 1}}, true},
		{"garbage string", `{"items":"not json"}`, []models.LineItem{}, true},
		{"wrong shape", `{"items":{"qty":1}}`, []models.LineItem{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFields(t, tt.body).items()
			if ok != tt.present {
				t.Fatalf("present = %v, want %v", ok, tt.present)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("items = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFieldsClient(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.Client
		present bool
	}{
		{"object", `{"client":{"name":"Acme","email":"a@acme.test"}}`, models.Client{Name: "Acme", Email: "a@acme.test"}, true},
		{"plain string is the name", `{"client":"  Acme  "}`, models.Client{Name: "Acme"}, true},
		{"stringified object", `{"client":"{\"name\":\"Acme\",\"phone\":123}"}`, models.Client{Name: "Acme", Phone: "123"}, true},
		{"empty string", `{"client":""}`, models.Client{}, false},
		{"absent", `{}`, models.Client{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFields(t, tt.body).client()
			if got != tt.want || ok != tt.present {
				t.Errorf("client() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.present)
			}
		})
	}
}

func TestFieldsScalars(t *testing.T) {
	f := parseFields(t, `{"a":"x","n":12,"b":true,"nil":null,"empty":"","tax":"7.5"}`)

	if s, ok := f.str("a"); s != "x" || !ok {
		t.Errorf("str(a) = %q, %v", s, ok)
	}
	if s, _ := f.str("n"); s != "12" {
		t.Errorf("str(n) = %q", s)
	}
	if _, ok := f.str("nil"); ok {
		t.Error("null should count as absent")
	}
	if got := f.firstStr("empty", "a"); got != "x" {
		t.Errorf("firstStr() = %q, want x", got)
	}
	if v, ok := f.firstNumber("taxPercent", "tax"); v != 7.5 || !ok {
		t.Errorf("firstNumber() = %v, %v", v, ok)
	}
	if _, ok := f.firstNumber("missing"); ok {
		t.Error("firstNumber(missing) should be absent")
	}
}

func TestFromValues(t *testing.T) {
	f := fromValues(map[string][]string{"taxPercent": {"10"}, "client": {"Acme"}, "none": {}})
	if v, _ := f.firstNumber("taxPercent"); v != 10 {
		t.Errorf("taxPercent = %v", v)
	}
	if c, _ := f.client(); c.Name != "Acme" {
		t.Errorf("client = %+v", c)
	}
	if f.has("none") {
		t.Error("empty value list should be absent")
	}
}
