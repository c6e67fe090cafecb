package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/calculator"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/events"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/middleware"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/numbering"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/render"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/uploads"
)

const (
	msgNumberTaken      = "Invoice number already exists"
	msgCreateExhausted  = "Failed to create invoice after multiple attempts"
	msgServerError      = "Server error"
	msgInvoiceNotFound  = "Invoice not found."
	msgForbiddenInvoice = "Forbidden: Not your invoice."
)

// Field names accepted for each invoice asset URL, in priority order.
var (
	logoKeys      = []string{"logoDataUrl", "logoUrl", "logo"}
	stampKeys     = []string{"stampDataUrl", "stampUrl", "stamp"}
	signatureKeys = []string{"signatureDataUrl", "signatureUrl", "signature"}
)

// InvoiceService serves the /api/invoice routes.
type InvoiceService struct {
	store    storage.Store
	alloc    *numbering.Allocator
	uploads  *uploads.Store
	events   events.Publisher
	metrics  *middleware.Metrics
	renderer *render.PDFRenderer
	now      func() time.Time
}

// NewInvoiceService creates a new InvoiceService from deps.
func NewInvoiceService(deps Deps) *InvoiceService {
	deps = deps.withDefaults()
	return &InvoiceService{
		store:    deps.Store,
		alloc:    deps.Allocator,
		uploads:  deps.Uploads,
		events:   deps.Events,
		metrics:  deps.Metrics,
		renderer: deps.Renderer,
		now:      time.Now,
	}
}

// CreateInvoice builds an invoice from the request body, computes its totals
// and stores it under a unique invoice number.
func (s *InvoiceService) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetUserID(ctx)

	in, form, err := readFields(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	status, ok := models.ParseStatus(in.strOr("status", ""))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	files, err := s.saveUploads(form)
	if err != nil {
		slog.Error("CreateInvoice upload failed", "error", err)
		writeBodyError(w, err)
		return
	}

	taxPercent, _ := in.firstNumber("taxPercent", "tax", "defaultTaxPercent")
	items, _ := in.items()
	if items == nil {
		items = []models.LineItem{}
	}
	client, _ := in.client()

	inv := &models.Invoice{
		Owner:            owner,
		IssueDate:        in.firstStr("issueDate"),
		DueDate:          in.strOr("dueDate", ""),
		FromBusinessName: in.strOr("fromBusinessName", ""),
		FromEmail:        in.strOr("fromEmail", ""),
		FromAddress:      in.strOr("fromAddress", ""),
		FromPhone:        in.strOr("fromPhone", ""),
		FromGST:          in.strOr("fromGst", ""),
		Client:           client,
		Items:            items,
		Currency:         in.firstStr("currency"),
		Status:           status,
		TaxPercent:       taxPercent,
		LogoURL:          firstNonEmpty(files.Logo, in.firstStr(logoKeys...)),
		StampURL:         firstNonEmpty(files.Stamp, in.firstStr(stampKeys...)),
		SignatureURL:     firstNonEmpty(files.Signature, in.firstStr(signatureKeys...)),
		SignatureName:    in.strOr("signatureName", ""),
		SignatureTitle:   in.strOr("signatureTitle", ""),
		Notes:            in.firstStr("notes", "aiSource"),
	}
	if inv.IssueDate == "" {
		inv.IssueDate = s.now().Format(time.DateOnly)
	}
	if inv.Currency == "" {
		inv.Currency = models.DefaultCurrency
	}
	applyTotals(inv)

	requested := strings.TrimSpace(in.strOr("invoiceNumber", ""))
	slog.Info("CreateInvoice request received",
		"owner", owner,
		"requested_number", requested,
		"items_count", len(inv.Items),
	)

	res, err := s.alloc.Create(ctx, s.store, inv, requested)
	if err != nil {
		discardUploads(s.uploads, files)
		switch {
		case errors.Is(err, numbering.ErrConflict):
			slog.Warn("CreateInvoice number conflict", "invoice_number", requested)
			writeError(w, http.StatusConflict, msgNumberTaken)
		case errors.Is(err, numbering.ErrAllocationExhausted):
			slog.Error("CreateInvoice allocation exhausted", "error", err)
			writeError(w, http.StatusInternalServerError, msgCreateExhausted)
		default:
			slog.Error("CreateInvoice failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.CreateAttempts.Observe(float64(res.Attempts))
		if res.Fallback {
			s.metrics.NumberFallbacks.Inc()
		}
	}
	if res.Fallback {
		slog.Warn("Invoice stored under fallback number", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber)
	}
	slog.Info("Invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"attempts", res.Attempts,
	)

	e := events.NewInvoiceEvent(events.InvoiceCreated, inv)
	e.Fallback = res.Fallback
	publish(ctx, s.events, e)

	writeOK(w, http.StatusCreated, "Invoice created", toInvoiceDTO(inv))
}

// ListInvoices returns the caller's invoices, newest first.
func (s *InvoiceService) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetUserID(ctx)
	q := r.URL.Query()

	filter := models.InvoiceFilter{
		Status:        models.Status(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		InvoiceNumber: strings.TrimSpace(q.Get("invoiceNumber")),
		Search:        strings.TrimSpace(q.Get("search")),
	}

	invoices, err := s.store.ListInvoices(ctx, owner, filter)
	if err != nil {
		slog.Error("ListInvoices failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	out := make([]invoiceDTO, len(invoices))
	for i, inv := range invoices {
		out[i] = toInvoiceDTO(inv)
	}
	slog.Debug("ListInvoices successful", "owner", owner, "count", len(out))

	writeOK(w, http.StatusOK, "", out)
}

// GetInvoice returns one invoice by storage id or invoice number.
func (s *InvoiceService) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.readableInvoice(w, r)
	if !ok {
		return
	}
	writeOK(w, http.StatusOK, "", toInvoiceDTO(inv))
}

// InvoicePDF renders one invoice as a PDF download.
func (s *InvoiceService) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.readableInvoice(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Invoice(&buf, inv); err != nil {
		slog.Error("InvoicePDF failed", "invoice_id", inv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, inv.InvoiceNumber+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// UpdateInvoice applies the supplied fields to one of the caller's invoices
// and recomputes its totals.
func (s *InvoiceService) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, ok := s.ownedInvoice(w, r)
	if !ok {
		return
	}

	in, form, err := readFields(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	if number := strings.TrimSpace(in.strOr("invoiceNumber", "")); number != "" && number != existing.InvoiceNumber {
		if err := s.alloc.CheckRename(ctx, existing.ID, number); err != nil {
			if errors.Is(err, numbering.ErrConflict) {
				writeError(w, http.StatusConflict, msgNumberTaken)
				return
			}
			slog.Error("UpdateInvoice rename check failed", "invoice_id", existing.ID, "error", err)
			writeError(w, http.StatusInternalServerError, msgServerError)
			return
		}
		existing.InvoiceNumber = number
	}

	if raw, ok := in.str("status"); ok && strings.TrimSpace(raw) != "" {
		status, valid := models.ParseStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		existing.Status = status
	}

	files, err := s.saveUploads(form)
	if err != nil {
		slog.Error("UpdateInvoice upload failed", "error", err)
		writeBodyError(w, err)
		return
	}

	setString(in, "issueDate", &existing.IssueDate)
	setString(in, "dueDate", &existing.DueDate)
	setString(in, "fromBusinessName", &existing.FromBusinessName)
	setString(in, "fromEmail", &existing.FromEmail)
	setString(in, "fromAddress", &existing.FromAddress)
	setString(in, "fromPhone", &existing.FromPhone)
	setString(in, "fromGst", &existing.FromGST)
	setString(in, "signatureName", &existing.SignatureName)
	setString(in, "signatureTitle", &existing.SignatureTitle)
	setString(in, "notes", &existing.Notes)
	if c := in.firstStr("currency"); c != "" {
		existing.Currency = c
	}
	if client, ok := in.client(); ok {
		existing.Client = client
	}
	if items, ok := in.items(); ok {
		existing.Items = items
	}
	if tax, ok := in.firstNumber("taxPercent", "tax", "defaultTaxPercent"); ok {
		existing.TaxPercent = tax
	}
	existing.LogoURL = firstNonEmpty(files.Logo, in.firstStr(logoKeys...), existing.LogoURL)
	existing.StampURL = firstNonEmpty(files.Stamp, in.firstStr(stampKeys...), existing.StampURL)
	existing.SignatureURL = firstNonEmpty(files.Signature, in.firstStr(signatureKeys...), existing.SignatureURL)
	applyTotals(existing)

	if err := s.store.UpdateInvoice(ctx, existing); err != nil {
		discardUploads(s.uploads, files)
		switch {
		case errors.Is(err, storage.ErrDuplicateInvoiceNumber):
			writeError(w, http.StatusConflict, msgNumberTaken)
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, msgInvoiceNotFound)
		default:
			slog.Error("UpdateInvoice failed", "invoice_id", existing.ID, "error", err)
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	slog.Info("Invoice updated", "invoice_id", existing.ID, "invoice_number", existing.InvoiceNumber)
	publish(ctx, s.events, events.NewInvoiceEvent(events.InvoiceUpdated, existing))

	writeOK(w, http.StatusOK, "Invoice updated.", toInvoiceDTO(existing))
}

// DeleteInvoice removes one of the caller's invoices.
func (s *InvoiceService) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, ok := s.ownedInvoice(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteInvoice(ctx, inv.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgInvoiceNotFound)
			return
		}
		slog.Error("DeleteInvoice failed", "invoice_id", inv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	slog.Info("Invoice deleted", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber)
	publish(ctx, s.events, events.NewInvoiceEvent(events.InvoiceDeleted, inv))

	writeOK(w, http.StatusOK, "Invoice deleted.", nil)
}

// lookup finds an invoice by storage id, then by invoice number.
func (s *InvoiceService) lookup(ctx context.Context, ref string) (*models.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return s.store.GetInvoiceByNumber(ctx, ref)
	}
	return inv, err
}

// readableInvoice resolves the {id} route variable for read access. Invoices
// of other owners are reported as forbidden.
func (s *InvoiceService) readableInvoice(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	ref := mux.Vars(r)["id"]
	inv, err := s.lookup(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgInvoiceNotFound)
			return nil, false
		}
		slog.Error("Invoice lookup failed", "ref", ref, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return nil, false
	}
	if inv.Owner != "" && inv.Owner != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, msgForbiddenInvoice)
		return nil, false
	}
	return inv, true
}

// ownedInvoice resolves the {id} route variable for write access. Invoices
// of other owners are reported as missing.
func (s *InvoiceService) ownedInvoice(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	ref := mux.Vars(r)["id"]
	inv, err := s.lookup(r.Context(), ref)
	if err == nil && inv.Owner != middleware.GetUserID(r.Context()) {
		err = storage.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgInvoiceNotFound)
			return nil, false
		}
		slog.Error("Invoice lookup failed", "ref", ref, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return nil, false
	}
	return inv, true
}

func (s *InvoiceService) saveUploads(form *multipart.Form) (uploads.URLs, error) {
	if s.uploads == nil || form == nil {
		return uploads.URLs{}, nil
	}
	return s.uploads.SaveForm(form)
}

// discardUploads removes files stored for a request that was not persisted.
func discardUploads(store *uploads.Store, files uploads.URLs) {
	if store == nil || files == (uploads.URLs{}) {
		return
	}
	store.Remove(files)
}

// applyTotals recomputes the derived amounts of inv.
func applyTotals(inv *models.Invoice) {
	items := make([]*calculator.Item, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = &calculator.Item{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	totals := calculator.ComputeForCurrency(items, inv.TaxPercent, inv.Currency)
	inv.Subtotal, inv.Tax, inv.Total = totals.Subtotal, totals.Tax, totals.Total
}

func setString(in fields, key string, dst *string) {
	if v, ok := in.str(key); ok {
		*dst = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeBodyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errTooLarge), errors.Is(err, uploads.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, "Malformed request body")
	default:
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}
