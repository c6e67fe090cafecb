package numbering

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

// fakeStore enforces invoice-number uniqueness atomically, like a unique index.
type fakeStore struct {
	mu      sync.Mutex
	numbers map[string]bool
	checks  int
	inserts int

	// existsHook, when set, overrides the existence check result.
	existsHook func(number string) bool
	// insertHook, when set, runs before the uniqueness check. A non-nil
	// error is returned from CreateInvoice as is.
	insertHook func(attempt int) error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{numbers: make(map[string]bool)}
	for _, n := range existing {
		s.numbers[n] = true
	}
	return s
}

func (s *fakeStore) InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	s.mu.Lock()
	s.checks++
	hook := s.existsHook
	taken := s.numbers[number]
	s.mu.Unlock()
	if hook != nil {
		return hook(number), nil
	}
	return taken, nil
}

func (s *fakeStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertHook != nil {
		if err := s.insertHook(s.inserts); err != nil {
			return err
		}
	}
	if s.numbers[inv.InvoiceNumber] {
		return fmt.Errorf("insert %s: %w", inv.InvoiceNumber, storage.ErrDuplicateInvoiceNumber)
	}
	s.numbers[inv.InvoiceNumber] = true
	inv.ID = fmt.Sprintf("id-%d", s.inserts)
	return nil
}

// sequence returns a generator yielding values in order, then numbered fallbacks.
func sequence(values ...string) (func() string, *int) {
	var mu sync.Mutex
	calls := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= len(values) {
			return values[calls-1]
		}
		return fmt.Sprintf("INV-SEQ-%d", calls)
	}, &calls
}

var objectIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

func TestGenerateFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^INV-\d{6}-\d{6}$`)
	for i := 0; i < 100; i++ {
		if got := Generate(); !pattern.MatchString(got) {
			t.Fatalf("Generate() = %q, want INV-dddddd-dddddd", got)
		}
	}
}

func TestNext(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first free candidate", func(t *testing.T) {
		store := newFakeStore("INV-A")
		gen, calls := sequence("INV-A", "INV-B")
		a := New(store, WithGenerator(gen), WithRetryDelay(0))

		alloc, err := a.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if alloc.Number != "INV-B" || alloc.Fallback {
			t.Errorf("Next() = %+v, want INV-B without fallback", alloc)
		}
		if *calls != 2 || store.checks != 2 {
			t.Errorf("generated %d, checked %d; want 2 and 2", *calls, store.checks)
		}
	})

	t.Run("falls back to opaque id when exhausted", func(t *testing.T) {
		store := newFakeStore()
		store.existsHook = func(string) bool { return true }
		a := New(store, WithMaxAttempts(8), WithRetryDelay(0))

		alloc, err := a.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !alloc.Fallback {
			t.Fatalf("expected fallback allocation, got %+v", alloc)
		}
		if !objectIDPattern.MatchString(alloc.Number) {
			t.Errorf("fallback number %q is not an object id", alloc.Number)
		}
		if store.checks != 8 {
			t.Errorf("checks = %d, want 8", store.checks)
		}
	})

	t.Run("propagates check errors", func(t *testing.T) {
		checkErr := errors.New("connection reset")
		a := New(checkerFunc(func(string) (bool, error) { return false, checkErr }), WithRetryDelay(0))

		_, err := a.Next(ctx)
		if !errors.Is(err, checkErr) {
			t.Errorf("Next() error = %v, want %v", err, checkErr)
		}
	})

	t.Run("stops waiting when context is cancelled", func(t *testing.T) {
		store := newFakeStore()
		store.existsHook = func(string) bool { return true }
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		a := New(store)

		_, err := a.Next(cctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next() error = %v, want context.Canceled", err)
		}
	})
}

type checkerFunc func(number string) (bool, error)

func (f checkerFunc) InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	return f(number)
}

func TestCreateNeverDuplicates(t *testing.T) {
	store := newFakeStore()
	a := New(store, WithRetryDelay(0))
	seen := make(map[string]bool)

	for i := 0; i < 500; i++ {
		res, err := a.Create(context.Background(), store, &models.Invoice{Owner: "user_1"}, "")
		if err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
		if seen[res.Invoice.InvoiceNumber] {
			t.Fatalf("duplicate invoice number issued: %s", res.Invoice.InvoiceNumber)
		}
		seen[res.Invoice.InvoiceNumber] = true
	}
}

func TestCreateRequested(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the requested number", func(t *testing.T) {
		store := newFakeStore()
		gen, calls := sequence()
		a := New(store, WithGenerator(gen))

		res, err := a.Create(ctx, store, &models.Invoice{}, "  INV-7 ")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if res.Invoice.InvoiceNumber != "INV-7" {
			t.Errorf("number = %q, want INV-7", res.Invoice.InvoiceNumber)
		}
		if *calls != 0 {
			t.Errorf("generator called %d times, want 0", *calls)
		}
	})

	t.Run("existing number is a conflict without writes", func(t *testing.T) {
		store := newFakeStore("INV-1")
		gen, calls := sequence()
		a := New(store, WithGenerator(gen))

		_, err := a.Create(ctx, store, &models.Invoice{}, "INV-1")
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("Create() error = %v, want ErrConflict", err)
		}
		if *calls != 0 {
			t.Errorf("generator called %d times, want 0", *calls)
		}
		if store.inserts != 0 {
			t.Errorf("inserts = %d, want 0", store.inserts)
		}
	})

	t.Run("insert-time collision is a conflict", func(t *testing.T) {
		store := newFakeStore("INV-1")
		// The check misses the row, as if it was inserted just after.
		store.existsHook = func(string) bool { return false }
		gen, calls := sequence()
		a := New(store, WithGenerator(gen))

		_, err := a.Create(ctx, store, &models.Invoice{}, "INV-1")
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("Create() error = %v, want ErrConflict", err)
		}
		if *calls != 0 {
			t.Errorf("generator called %d times, want 0", *calls)
		}
		if store.inserts != 1 {
			t.Errorf("inserts = %d, want 1", store.inserts)
		}
	})
}

func TestCreateRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("regenerates after insert-time collisions", func(t *testing.T) {
		store := newFakeStore()
		store.insertHook = func(attempt int) error {
			if attempt <= 2 {
				return fmt.Errorf("race: %w", storage.ErrDuplicateInvoiceNumber)
			}
			return nil
		}
		gen, _ := sequence("INV-1", "INV-2", "INV-3")
		a := New(store, WithGenerator(gen), WithRetryDelay(0))

		res, err := a.Create(ctx, store, &models.Invoice{}, "")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if res.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", res.Attempts)
		}
		if res.Invoice.InvoiceNumber != "INV-3" {
			t.Errorf("number = %q, want INV-3", res.Invoice.InvoiceNumber)
		}
	})

	t.Run("bounded by max save attempts", func(t *testing.T) {
		store := newFakeStore()
		store.insertHook = func(int) error {
			return storage.ErrDuplicateInvoiceNumber
		}
		a := New(store, WithMaxSaveAttempts(6), WithRetryDelay(0))

		_, err := a.Create(ctx, store, &models.Invoice{}, "")
		if !errors.Is(err, ErrAllocationExhausted) {
			t.Fatalf("Create() error = %v, want ErrAllocationExhausted", err)
		}
		if store.inserts != 6 {
			t.Errorf("inserts = %d, want 6", store.inserts)
		}
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		diskErr := errors.New("disk full")
		store := newFakeStore()
		store.insertHook = func(int) error { return diskErr }
		a := New(store, WithRetryDelay(0))

		_, err := a.Create(ctx, store, &models.Invoice{}, "")
		if !errors.Is(err, diskErr) {
			t.Fatalf("Create() error = %v, want %v", err, diskErr)
		}
		if store.inserts != 1 {
			t.Errorf("inserts = %d, want 1", store.inserts)
		}
	})

	t.Run("stores the fallback id when every candidate collides", func(t *testing.T) {
		store := newFakeStore()
		store.existsHook = func(number string) bool { return strings.HasPrefix(number, "INV-") }
		a := New(store, WithMaxAttempts(10), WithRetryDelay(0))

		res, err := a.Create(ctx, store, &models.Invoice{}, "")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !res.Fallback {
			t.Error("expected Fallback to be set")
		}
		if !objectIDPattern.MatchString(res.Invoice.InvoiceNumber) {
			t.Errorf("number %q is not an object id", res.Invoice.InvoiceNumber)
		}
		if store.checks != 10 {
			t.Errorf("checks = %d, want 10", store.checks)
		}
	})
}

func TestConcurrentCreateRace(t *testing.T) {
	store := newFakeStore()

	// Both first checks observe the store before either caller inserts,
	// then wait for each other, so both go on to insert the same candidate.
	var arrived sync.WaitGroup
	arrived.Add(2)
	var mu sync.Mutex
	firstChecks := 0
	store.existsHook = func(number string) bool {
		store.mu.Lock()
		taken := store.numbers[number]
		store.mu.Unlock()

		mu.Lock()
		firstChecks++
		wait := firstChecks <= 2
		mu.Unlock()
		if wait {
			arrived.Done()
			arrived.Wait()
		}
		return taken
	}

	gen, _ := sequence("INV-RACE", "INV-RACE")
	a := New(store, WithGenerator(gen), WithRetryDelay(0))

	results := make([]*Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Create(context.Background(), store, &models.Invoice{}, "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}

	a0, a1 := results[0], results[1]
	if a0.Invoice.InvoiceNumber == a1.Invoice.InvoiceNumber {
		t.Fatalf("both callers stored %s", a0.Invoice.InvoiceNumber)
	}

	var winner, loser *Result
	if a0.Attempts == 1 {
		winner, loser = a0, a1
	} else {
		winner, loser = a1, a0
	}
	if winner.Attempts != 1 || winner.Invoice.InvoiceNumber != "INV-RACE" {
		t.Errorf("winner = %s after %d attempts, want INV-RACE after 1", winner.Invoice.InvoiceNumber, winner.Attempts)
	}
	if loser.Attempts != 2 || loser.Invoice.InvoiceNumber == "INV-RACE" {
		t.Errorf("loser = %s after %d attempts, want a regenerated number after 2", loser.Invoice.InvoiceNumber, loser.Attempts)
	}
}

func TestCheckRename(t *testing.T) {
	store := &renameStore{owners: map[string]string{"INV-1": "a", "INV-2": "b"}}
	a := New(store)
	ctx := context.Background()

	tests := []struct {
		name     string
		id       string
		number   string
		conflict bool
	}{
		{"keeping own number", "a", "INV-1", false},
		{"taking another invoice's number", "a", "INV-2", true},
		{"unused number", "a", "INV-3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.CheckRename(ctx, tt.id, tt.number)
			if got := errors.Is(err, ErrConflict); got != tt.conflict {
				t.Errorf("CheckRename(%s, %s) error = %v, conflict want %v", tt.id, tt.number, err, tt.conflict)
			}
		})
	}
}

// renameStore maps invoice numbers to the ID of the invoice holding them.
type renameStore struct {
	owners map[string]string
}

func (s *renameStore) InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	id, ok := s.owners[number]
	return ok && id != excludeID, nil
}
