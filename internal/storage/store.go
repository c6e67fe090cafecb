// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

var (
	// ErrNotFound is returned when the requested invoice or profile does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateInvoiceNumber is returned when a write is rejected by the unique
	// index on the invoice number. Backends must return it (possibly wrapped) for
	// that constraint only, never for other constraint violations.
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")

	// ErrDuplicateProfile is returned when an owner already has a business profile.
	ErrDuplicateProfile = errors.New("business profile already exists")
)

// InvoiceStore defines the invoice persistence operations.
type InvoiceStore interface {
	// CreateInvoice persists a new invoice. The ID, CreatedAt and UpdatedAt
	// fields are populated by the store.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error

	// GetInvoice retrieves an invoice by its storage ID.
	// Returns ErrNotFound if it does not exist.
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)

	// GetInvoiceByNumber retrieves an invoice by its invoice number.
	// Returns ErrNotFound if it does not exist.
	GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)

	// ListInvoices returns the owner's invoices, newest first.
	ListInvoices(ctx context.Context, owner string, filter models.InvoiceFilter) ([]*models.Invoice, error)

	// UpdateInvoice replaces a stored invoice.
	// Returns ErrNotFound if it does not exist.
	UpdateInvoice(ctx context.Context, inv *models.Invoice) error

	// DeleteInvoice removes an invoice.
	// Returns ErrNotFound if it does not exist.
	DeleteInvoice(ctx context.Context, id string) error

	// InvoiceNumberExists reports whether any invoice other than excludeID uses number.
	// Pass an empty excludeID to check against every invoice.
	InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error)
}

// ProfileStore defines the business profile persistence operations.
type ProfileStore interface {
	// CreateProfile persists a new profile. Returns ErrDuplicateProfile if the
	// owner already has one.
	CreateProfile(ctx context.Context, p *models.BusinessProfile) error

	// GetProfile retrieves a profile by ID. Returns ErrNotFound if missing.
	GetProfile(ctx context.Context, id string) (*models.BusinessProfile, error)

	// GetProfileByOwner retrieves the owner's profile. Returns ErrNotFound if missing.
	GetProfileByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error)

	// UpdateProfile replaces a stored profile. Returns ErrNotFound if missing.
	UpdateProfile(ctx context.Context, p *models.BusinessProfile) error
}

// Store combines all storage operations.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer.
type Store interface {
	InvoiceStore
	ProfileStore

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
