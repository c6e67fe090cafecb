// Package models defines the core domain models for the invoice backend.
//
// # Models
//
//   - Invoice: an invoice aggregate owned by one authenticated user
//   - LineItem: a single billable line on an invoice
//   - Client: the billed party, embedded in the invoice
//   - BusinessProfile: the issuing business details, one per owner
//
// Owners are identified by the subject of their bearer token. There is no local
// user table; identity lives with the external auth provider.
//
// # Design Principles
//
// 1. **Documents, not graphs**: line items and client details are embedded in the
// invoice and never shared between invoices
// 2. **Derived totals**: Subtotal, Tax and Total are always recomputed from items
// and TaxPercent by the calculator package before persisting
// 3. **Global invoice numbers**: InvoiceNumber is unique across all owners and is
// enforced by the storage layer's unique index
package models
