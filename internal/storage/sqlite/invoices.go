package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

const invoiceColumns = `id, owner, invoice_number, issue_date, due_date,
	from_business_name, from_email, from_address, from_phone, from_gst,
	client_name, client_email, client_address, client_phone,
	currency, status, tax_percent, subtotal, tax, total,
	logo_url, stamp_url, signature_url, signature_name, signature_title, notes,
	created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateInvoice persists a new invoice and its items in one transaction.
// A clash on the invoice number is reported as storage.ErrDuplicateInvoiceNumber.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if inv.CreatedAt == 0 {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Owner, inv.InvoiceNumber, inv.IssueDate, inv.DueDate,
		inv.FromBusinessName, inv.FromEmail, inv.FromAddress, inv.FromPhone, inv.FromGST,
		inv.Client.Name, inv.Client.Email, inv.Client.Address, inv.Client.Phone,
		inv.Currency, string(inv.Status), inv.TaxPercent, inv.Subtotal, inv.Tax, inv.Total,
		inv.LogoURL, inv.StampURL, inv.SignatureURL, inv.SignatureName, inv.SignatureTitle, inv.Notes,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "invoices.invoice_number") {
			return fmt.Errorf("failed to insert invoice %q: %w", inv.InvoiceNumber, storage.ErrDuplicateInvoiceNumber)
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, db execer, invoiceID string, items []models.LineItem) error {
	for i, item := range items {
		_, err := db.ExecContext(ctx,
			"INSERT INTO invoice_items (invoice_id, position, id, description, quantity, unit_price) VALUES (?, ?, ?, ?, ?, ?)",
			invoiceID, i, item.ID, item.Description, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

// GetInvoice retrieves an invoice by ID, including its items.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.getInvoiceWhere(ctx, "id = ?", id)
}

// GetInvoiceByNumber retrieves an invoice by its invoice number.
func (s *SQLiteStore) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.getInvoiceWhere(ctx, "invoice_number = ?", number)
}

func (s *SQLiteStore) getInvoiceWhere(ctx context.Context, where string, arg any) (*models.Invoice, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE "+where, arg)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %v: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if inv.Items, err = s.loadItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the owner's invoices matching filter, newest first.
func (s *SQLiteStore) ListInvoices(ctx context.Context, owner string, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	conds := []string{"owner = ?"}
	args := []any{owner}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.InvoiceNumber != "" {
		conds = append(conds, "invoice_number = ?")
		args = append(args, filter.InvoiceNumber)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		conds = append(conds, `(from_email LIKE ? ESCAPE '\' OR client_email LIKE ? ESCAPE '\'
			OR client_name LIKE ? ESCAPE '\' OR invoice_number LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := "SELECT " + invoiceColumns + " FROM invoices WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY created_at DESC, rowid DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	rows.Close()

	for _, inv := range invoices {
		if inv.Items, err = s.loadItems(ctx, inv.ID); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// UpdateInvoice replaces the invoice row and its items.
func (s *SQLiteStore) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	inv.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET invoice_number = ?, issue_date = ?, due_date = ?,
			from_business_name = ?, from_email = ?, from_address = ?, from_phone = ?, from_gst = ?,
			client_name = ?, client_email = ?, client_address = ?, client_phone = ?,
			currency = ?, status = ?, tax_percent = ?, subtotal = ?, tax = ?, total = ?,
			logo_url = ?, stamp_url = ?, signature_url = ?, signature_name = ?, signature_title = ?, notes = ?,
			updated_at = ?
		 WHERE id = ?`,
		inv.InvoiceNumber, inv.IssueDate, inv.DueDate,
		inv.FromBusinessName, inv.FromEmail, inv.FromAddress, inv.FromPhone, inv.FromGST,
		inv.Client.Name, inv.Client.Email, inv.Client.Address, inv.Client.Phone,
		inv.Currency, string(inv.Status), inv.TaxPercent, inv.Subtotal, inv.Tax, inv.Total,
		inv.LogoURL, inv.StampURL, inv.SignatureURL, inv.SignatureName, inv.SignatureTitle, inv.Notes,
		inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "invoices.invoice_number") {
			return fmt.Errorf("failed to update invoice %q: %w", inv.InvoiceNumber, storage.ErrDuplicateInvoiceNumber)
		}
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_items WHERE invoice_id = ?", inv.ID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteInvoice removes an invoice; its items cascade.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// InvoiceNumberExists reports whether an invoice other than excludeID uses number.
func (s *SQLiteStore) InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_number = ? AND id != ?)",
		number, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice number: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, invoiceID string) ([]models.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, description, quantity, unit_price FROM invoice_items WHERE invoice_id = ? ORDER BY position",
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []models.LineItem{}
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var status string
	err := row.Scan(
		&inv.ID, &inv.Owner, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate,
		&inv.FromBusinessName, &inv.FromEmail, &inv.FromAddress, &inv.FromPhone, &inv.FromGST,
		&inv.Client.Name, &inv.Client.Email, &inv.Client.Address, &inv.Client.Phone,
		&inv.Currency, &status, &inv.TaxPercent, &inv.Subtotal, &inv.Tax, &inv.Total,
		&inv.LogoURL, &inv.StampURL, &inv.SignatureURL, &inv.SignatureName, &inv.SignatureTitle, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = models.Status(status)
	return inv, nil
}
