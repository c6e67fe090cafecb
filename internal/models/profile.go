package models

// Defaults applied when a business profile is created without these fields.
const (
	DefaultBusinessName      = "ABC Solutions"
	DefaultProfileTaxPercent = 18
)

// BusinessProfile holds the issuing business details reused across invoices.
// Each owner has at most one profile.
type BusinessProfile struct {
	ID    string
	Owner string

	BusinessName string
	Email        string
	Address      string
	Phone        string
	GST          string

	LogoURL      string
	StampURL     string
	SignatureURL string

	SignatureOwnerName  string
	SignatureOwnerTitle string

	// DefaultTaxPercent pre-fills TaxPercent on new invoices.
	DefaultTaxPercent float64

	CreatedAt int64
	UpdatedAt int64
}
