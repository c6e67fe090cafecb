package models

import "strings"

// Status is the payment state of an invoice.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusUnpaid  Status = "unpaid"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// ParseStatus lowercases s and reports whether it names a known status.
// An empty string parses as StatusDraft.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case "":
		return StatusDraft, true
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue:
		return st, true
	}
	return "", false
}

// DefaultCurrency is used when an invoice is created without a currency.
const DefaultCurrency = "MYR"

// Invoice represents one invoice document with its items, totals and assets.
type Invoice struct {
	// ID is the storage identifier (UUID for SQLite, ObjectID hex for MongoDB).
	ID string

	// Owner is the authenticated user who created the invoice.
	Owner string

	// InvoiceNumber is the human-readable identifier, unique across all invoices.
	InvoiceNumber string

	// IssueDate and DueDate are ISO dates (YYYY-MM-DD). DueDate may be empty.
	IssueDate string
	DueDate   string

	// Issuing business details, copied from the business profile or typed by hand.
	FromBusinessName string
	FromEmail        string
	FromAddress      string
	FromPhone        string
	FromGST          string

	Client Client

	// Items are the invoice lines. Item IDs are unique within the invoice only.
	Items []LineItem

	Currency   string
	Status     Status
	TaxPercent float64

	// Subtotal, Tax and Total are derived from Items and TaxPercent.
	Subtotal float64
	Tax      float64
	Total    float64

	// Asset URLs for the rendered invoice. Empty when not set.
	LogoURL      string
	StampURL     string
	SignatureURL string

	SignatureName  string
	SignatureTitle string
	Notes          string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// Client is the party an invoice is addressed to.
type Client struct {
	Name    string
	Email   string
	Address string
	Phone   string
}

// LineItem is a single billable line on an invoice.
type LineItem struct {
	// ID is caller-supplied and unique within the invoice.
	ID          string
	Description string
	Quantity    float64
	UnitPrice   float64
}

// Amount returns Quantity × UnitPrice without rounding.
func (i LineItem) Amount() float64 {
	return i.Quantity * i.UnitPrice
}

// InvoiceFilter narrows an owner's invoice listing.
type InvoiceFilter struct {
	Status        Status
	InvoiceNumber string
	// Search is a case-insensitive substring matched against the issuer email,
	// client email, client name and invoice number.
	Search string
}
