// Package numbering allocates human-readable invoice numbers and persists new
// invoices with retry on invoice-number collisions.
//
// The storage layer's unique index on the invoice number is the only source of
// truth. The existence check before an insert narrows the collision window but
// cannot close it, so inserts rejected by the index are retried with a fresh
// number when the number was system-generated.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

var (
	// ErrConflict is returned when a caller-supplied invoice number is already in use.
	ErrConflict = errors.New("invoice number already in use")

	// ErrAllocationExhausted is returned when every save attempt for a
	// system-generated number hit the uniqueness constraint.
	ErrAllocationExhausted = errors.New("failed to create invoice after multiple attempts")
)

// Defaults for New.
const (
	DefaultMaxAttempts     = 8
	DefaultMaxSaveAttempts = 6
	DefaultRetryDelay      = 2 * time.Millisecond
)

// Checker reports whether an invoice number is taken by any invoice other than excludeID.
type Checker interface {
	InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error)
}

// Inserter persists a new invoice. It must return an error wrapping
// storage.ErrDuplicateInvoiceNumber when the invoice-number unique index
// rejected the insert, and any other error for every other failure.
type Inserter interface {
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
}

// Allocation is a candidate number confirmed free at check time.
type Allocation struct {
	Number string
	// Fallback is set when every formatted candidate collided and Number is an
	// opaque unique identifier instead of an INV- number.
	Fallback bool
}

// Result describes a successful Create.
type Result struct {
	Invoice *models.Invoice
	// Attempts is the number of inserts issued, including the successful one.
	Attempts int
	// Fallback is set when the stored number came from the opaque-id fallback.
	Fallback bool
}

// Allocator proposes invoice numbers and drives the save-with-retry protocol.
// It holds no mutable state and is safe for concurrent use.
type Allocator struct {
	checker         Checker
	maxAttempts     int
	maxSaveAttempts int
	retryDelay      time.Duration
	generate        func() string
	fallback        func() string
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts bounds the propose/check loop of Next.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithMaxSaveAttempts bounds the number of inserts issued by Create.
func WithMaxSaveAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxSaveAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between colliding candidates. Zero disables it.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Allocator) {
		if d >= 0 {
			a.retryDelay = d
		}
	}
}

// WithGenerator replaces the candidate source. gen must be safe for concurrent use.
func WithGenerator(gen func() string) Option {
	return func(a *Allocator) {
		if gen != nil {
			a.generate = gen
		}
	}
}

// WithFallback replaces the opaque identifier source used after exhaustion.
func WithFallback(fn func() string) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.fallback = fn
		}
	}
}

// New creates an Allocator that checks candidates against checker.
func New(checker Checker, opts ...Option) *Allocator {
	a := &Allocator{
		checker:         checker,
		maxAttempts:     DefaultMaxAttempts,
		maxSaveAttempts: DefaultMaxSaveAttempts,
		retryDelay:      DefaultRetryDelay,
		generate:        Generate,
		fallback:        func() string { return bson.NewObjectID().Hex() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate returns a candidate of the form INV-<last 6 digits of unix millis>-<6 random digits>.
func Generate() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("INV-%s-%06d", ts, rand.Intn(1_000_000))
}

// Next proposes candidates until one is free or the attempt bound is reached.
// After exhaustion it returns an opaque identifier with Fallback set rather than
// failing. Check errors are returned unchanged in meaning and never retried.
func (a *Allocator) Next(ctx context.Context) (Allocation, error) {
	for i := 0; i < a.maxAttempts; i++ {
		candidate := a.generate()
		exists, err := a.checker.InvoiceNumberExists(ctx, candidate, "")
		if err != nil {
			return Allocation{}, fmt.Errorf("failed to check invoice number: %w", err)
		}
		if !exists {
			return Allocation{Number: candidate}, nil
		}
		if i < a.maxAttempts-1 {
			if err := a.pause(ctx); err != nil {
				return Allocation{}, err
			}
		}
	}
	return Allocation{Number: a.fallback(), Fallback: true}, nil
}

// Create persists inv through ins and assigns its invoice number.
//
// When requested is non-empty (after trimming) it is used verbatim: if it is
// already taken, at check time or at insert time, ErrConflict is returned and no
// other number is tried. Otherwise numbers come from Next and an insert rejected
// by the uniqueness constraint is retried with a fresh number, up to the save
// attempt bound, after which ErrAllocationExhausted is returned. Any other
// insert error is returned immediately.
func (a *Allocator) Create(ctx context.Context, ins Inserter, inv *models.Invoice, requested string) (*Result, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return a.createRequested(ctx, ins, inv, requested)
	}

	alloc, err := a.Next(ctx)
	if err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= a.maxSaveAttempts; attempt++ {
		inv.InvoiceNumber = alloc.Number
		err := ins.CreateInvoice(ctx, inv)
		if err == nil {
			return &Result{Invoice: inv, Attempts: attempt, Fallback: alloc.Fallback}, nil
		}
		if !errors.Is(err, storage.ErrDuplicateInvoiceNumber) {
			return nil, err
		}
		if attempt == a.maxSaveAttempts {
			break
		}
		if alloc, err = a.Next(ctx); err != nil {
			return nil, err
		}
	}
	inv.InvoiceNumber = ""
	return nil, fmt.Errorf("%w (%d attempts)", ErrAllocationExhausted, a.maxSaveAttempts)
}

func (a *Allocator) createRequested(ctx context.Context, ins Inserter, inv *models.Invoice, number string) (*Result, error) {
	exists, err := a.checker.InvoiceNumberExists(ctx, number, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check invoice number: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrConflict, number)
	}

	inv.InvoiceNumber = number
	if err := ins.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, storage.ErrDuplicateInvoiceNumber) {
			return nil, fmt.Errorf("%w: %s", ErrConflict, number)
		}
		return nil, err
	}
	return &Result{Invoice: inv, Attempts: 1}, nil
}

// CheckRename returns ErrConflict if number is used by any invoice other than id.
func (a *Allocator) CheckRename(ctx context.Context, id, number string) error {
	exists, err := a.checker.InvoiceNumberExists(ctx, number, id)
	if err != nil {
		return fmt.Errorf("failed to check invoice number: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrConflict, number)
	}
	return nil
}

func (a *Allocator) pause(ctx context.Context) error {
	if a.retryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(a.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
