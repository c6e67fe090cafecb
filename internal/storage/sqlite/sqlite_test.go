package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/numbering"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "invoicer-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleInvoice(owner, number string) *models.Invoice {
	return &models.Invoice{
		Owner:            owner,
		InvoiceNumber:    number,
		IssueDate:        "2026-10-01",
		DueDate:          "2026-10-31",
		FromBusinessName: "Acme Sdn Bhd",
		FromEmail:        "billing@acme.test",
		Client:           models.Client{Name: "Globex", Email: "ap@globex.test"},
		Items: []models.LineItem{
			{ID: "1", Description: "Design", Quantity: 2, UnitPrice: 50},
			{ID: "2", Description: "Hosting", Quantity: 1, UnitPrice: 20},
		},
		Currency:   "MYR",
		Status:     models.StatusDraft,
		TaxPercent: 10,
		Subtotal:   120,
		Tax:        12,
		Total:      132,
	}
}

func TestInvoiceCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateInvoice generates ID and timestamps", func(t *testing.T) {
		inv := sampleInvoice("user_1", "INV-100")
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}
		if inv.ID == "" {
			t.Error("Expected invoice ID to be generated")
		}
		if inv.CreatedAt == 0 || inv.UpdatedAt == 0 {
			t.Error("Expected timestamps to be set")
		}
	})

	t.Run("GetInvoice retrieves complete invoice", func(t *testing.T) {
		original := sampleInvoice("user_1", "INV-101")
		if err := store.CreateInvoice(ctx, original); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}

		got, err := store.GetInvoice(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetInvoice failed: %v", err)
		}
		if got.InvoiceNumber != "INV-101" {
			t.Errorf("InvoiceNumber mismatch: got %s", got.InvoiceNumber)
		}
		if got.Client != original.Client {
			t.Errorf("Client mismatch: got %+v, want %+v", got.Client, original.Client)
		}
		if got.Total != 132 || got.Tax != 12 || got.Subtotal != 120 {
			t.Errorf("Totals mismatch: got %v/%v/%v", got.Subtotal, got.Tax, got.Total)
		}
		if len(got.Items) != 2 {
			t.Fatalf("Items count mismatch: got %d, want 2", len(got.Items))
		}
		if got.Items[0] != original.Items[0] || got.Items[1] != original.Items[1] {
			t.Errorf("Items mismatch or out of order: %+v", got.Items)
		}

		byNumber, err := store.GetInvoiceByNumber(ctx, "INV-101")
		if err != nil {
			t.Fatalf("GetInvoiceByNumber failed: %v", err)
		}
		if byNumber.ID != original.ID {
			t.Errorf("GetInvoiceByNumber returned %s, want %s", byNumber.ID, original.ID)
		}
	})

	t.Run("GetInvoice returns ErrNotFound for nonexistent invoice", func(t *testing.T) {
		_, err := store.GetInvoice(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateInvoice replaces fields and items", func(t *testing.T) {
		inv := sampleInvoice("user_1", "INV-102")
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}

		inv.InvoiceNumber = "INV-102-R"
		inv.Status = models.StatusPaid
		inv.Items = []models.LineItem{{ID: "9", Description: "Retainer", Quantity: 1, UnitPrice: 500}}
		if err := store.UpdateInvoice(ctx, inv); err != nil {
			t.Fatalf("UpdateInvoice failed: %v", err)
		}

		got, err := store.GetInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatalf("GetInvoice failed: %v", err)
		}
		if got.InvoiceNumber != "INV-102-R" || got.Status != models.StatusPaid {
			t.Errorf("Update not applied: %s %s", got.InvoiceNumber, got.Status)
		}
		if len(got.Items) != 1 || got.Items[0].Description != "Retainer" {
			t.Errorf("Items not replaced: %+v", got.Items)
		}
	})

	t.Run("UpdateInvoice rejects a taken number", func(t *testing.T) {
		a := sampleInvoice("user_1", "INV-103")
		b := sampleInvoice("user_2", "INV-104")
		for _, inv := range []*models.Invoice{a, b} {
			if err := store.CreateInvoice(ctx, inv); err != nil {
				t.Fatalf("CreateInvoice failed: %v", err)
			}
		}

		b.InvoiceNumber = "INV-103"
		err := store.UpdateInvoice(ctx, b)
		if !errors.Is(err, storage.ErrDuplicateInvoiceNumber) {
			t.Errorf("Expected ErrDuplicateInvoiceNumber, got %v", err)
		}
	})

	t.Run("DeleteInvoice removes invoice", func(t *testing.T) {
		inv := sampleInvoice("user_1", "INV-105")
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}
		if err := store.DeleteInvoice(ctx, inv.ID); err != nil {
			t.Fatalf("DeleteInvoice failed: %v", err)
		}
		if _, err := store.GetInvoice(ctx, inv.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteInvoice(ctx, inv.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateInvoice(ctx, sampleInvoice("user_1", "INV-1")); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	// Numbers are unique across owners, not per owner.
	err := store.CreateInvoice(ctx, sampleInvoice("user_2", "INV-1"))
	if !errors.Is(err, storage.ErrDuplicateInvoiceNumber) {
		t.Fatalf("Expected ErrDuplicateInvoiceNumber, got %v", err)
	}

	// The failed insert must not leave items behind.
	var orphans int
	if err := store.db.QueryRow(
		"SELECT COUNT(*) FROM invoice_items WHERE invoice_id NOT IN (SELECT id FROM invoices)",
	).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("Expected no orphaned items, got %d", orphans)
	}
}

func TestInvoiceNumberExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inv := sampleInvoice("user_1", "INV-7")
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	tests := []struct {
		name      string
		number    string
		excludeID string
		want      bool
	}{
		{"taken", "INV-7", "", true},
		{"free", "INV-8", "", false},
		{"taken only by excluded invoice", "INV-7", inv.ID, false},
		{"taken, other invoice excluded", "INV-7", "other", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.InvoiceNumberExists(ctx, tt.number, tt.excludeID)
			if err != nil {
				t.Fatalf("InvoiceNumberExists failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("InvoiceNumberExists(%q, %q) = %v, want %v", tt.number, tt.excludeID, got, tt.want)
			}
		})
	}
}

func TestListInvoices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fixtures := []struct {
		owner, number, client string
		status                models.Status
	}{
		{"user_1", "INV-A1", "Globex", models.StatusDraft},
		{"user_1", "INV-A2", "Initech", models.StatusPaid},
		{"user_1", "INV-A3", "globex east", models.StatusPaid},
		{"user_2", "INV-B1", "Globex", models.StatusPaid},
	}
	for _, f := range fixtures {
		inv := sampleInvoice(f.owner, f.number)
		inv.Client = models.Client{Name: f.client}
		inv.Status = f.status
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter models.InvoiceFilter
		want   []string
	}{
		{"all for owner, newest first", models.InvoiceFilter{}, []string{"INV-A3", "INV-A2", "INV-A1"}},
		{"by status", models.InvoiceFilter{Status: models.StatusPaid}, []string{"INV-A3", "INV-A2"}},
		{"by number", models.InvoiceFilter{InvoiceNumber: "INV-A1"}, []string{"INV-A1"}},
		{"search is case-insensitive", models.InvoiceFilter{Search: "GLOBEX"}, []string{"INV-A3", "INV-A1"}},
		{"search matches invoice number", models.InvoiceFilter{Search: "a2"}, []string{"INV-A2"}},
		{"search treats wildcards literally", models.InvoiceFilter{Search: "%"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListInvoices(ctx, "user_1", tt.filter)
			if err != nil {
				t.Fatalf("ListInvoices failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListInvoices returned %d invoices, want %d", len(got), len(tt.want))
			}
			for i, inv := range got {
				if inv.InvoiceNumber != tt.want[i] {
					t.Errorf("position %d: got %s, want %s", i, inv.InvoiceNumber, tt.want[i])
				}
				if len(inv.Items) != 2 {
					t.Errorf("%s: expected items to be loaded, got %d", inv.InvoiceNumber, len(inv.Items))
				}
			}
		})
	}
}

func TestConcurrentAllocation(t *testing.T) {
	store := newTestStore(t)
	alloc := numbering.New(store)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	numbers := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := alloc.Create(ctx, store, sampleInvoice("user_1", ""), "")
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = res.Invoice.InvoiceNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("writer %d failed: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Errorf("duplicate number %s", numbers[i])
		}
		seen[numbers[i]] = true
	}
}

func TestConcurrentRequestedNumber(t *testing.T) {
	store := newTestStore(t)
	alloc := numbering.New(store)
	ctx := context.Background()

	const writers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicts := 0, 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.Create(ctx, store, sampleInvoice("user_1", ""), "INV-SAME")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, numbering.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != writers-1 {
		t.Errorf("succeeded=%d conflicts=%d, want 1 and %d", succeeded, conflicts, writers-1)
	}
}

func TestProfiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &models.BusinessProfile{
		Owner:             "user_1",
		BusinessName:      "Acme",
		Email:             "hi@acme.test",
		DefaultTaxPercent: 18,
	}
	if err := store.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Expected profile ID to be generated")
	}

	t.Run("one profile per owner", func(t *testing.T) {
		err := store.CreateProfile(ctx, &models.BusinessProfile{Owner: "user_1", BusinessName: "Other"})
		if !errors.Is(err, storage.ErrDuplicateProfile) {
			t.Errorf("Expected ErrDuplicateProfile, got %v", err)
		}
	})

	t.Run("lookup by owner", func(t *testing.T) {
		got, err := store.GetProfileByOwner(ctx, "user_1")
		if err != nil {
			t.Fatalf("GetProfileByOwner failed: %v", err)
		}
		if got.ID != p.ID || got.BusinessName != "Acme" {
			t.Errorf("unexpected profile: %+v", got)
		}
		if _, err := store.GetProfileByOwner(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		p.BusinessName = "Acme Holdings"
		p.DefaultTaxPercent = 6
		if err := store.UpdateProfile(ctx, p); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		got, err := store.GetProfile(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.BusinessName != "Acme Holdings" || got.DefaultTaxPercent != 6 {
			t.Errorf("update not applied: %+v", got)
		}
		if err := store.UpdateProfile(ctx, &models.BusinessProfile{ID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`c:\x`, `c:\\x`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
