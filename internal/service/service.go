// Package service implements the JSON REST API for invoices, business
// profiles and AI drafts.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/auth"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/draft"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/events"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/middleware"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/numbering"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/render"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/uploads"
)

// Deps are the collaborators shared by the API services. Store is required;
// nil optional fields get working defaults or disable their feature.
type Deps struct {
	Store     storage.Store
	Allocator *numbering.Allocator
	Uploads   *uploads.Store
	Events    events.Publisher
	Metrics   *middleware.Metrics
	Renderer  *render.PDFRenderer
	Drafter   *draft.Drafter
}

func (d Deps) withDefaults() Deps {
	if d.Allocator == nil {
		d.Allocator = numbering.New(d.Store)
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Renderer == nil {
		d.Renderer = render.NewPDFRenderer("", "")
	}
	if d.Drafter == nil {
		d.Drafter = draft.New(nil, nil)
	}
	return d
}

// NewRouter mounts every /api route behind bearer authentication.
func NewRouter(r *mux.Router, deps Deps, jwtManager *auth.JWTManager) {
	deps = deps.withDefaults()
	invoices := NewInvoiceService(deps)
	profiles := NewProfileService(deps)
	drafts := NewDraftService(deps.Drafter)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(jwtManager))

	api.HandleFunc("/invoice", invoices.CreateInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoice", invoices.ListInvoices).Methods(http.MethodGet)
	api.HandleFunc("/invoice/{id}", invoices.GetInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoice/{id}", invoices.UpdateInvoice).Methods(http.MethodPut)
	api.HandleFunc("/invoice/{id}", invoices.DeleteInvoice).Methods(http.MethodDelete)
	api.HandleFunc("/invoice/{id}/pdf", invoices.InvoicePDF).Methods(http.MethodGet)

	api.HandleFunc("/businessProfile/me", profiles.GetMyProfile).Methods(http.MethodGet)
	api.HandleFunc("/businessProfile", profiles.CreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/businessProfile/{id}", profiles.UpdateProfile).Methods(http.MethodPut)

	api.HandleFunc("/ai/generate", drafts.Generate).Methods(http.MethodPost)
}

// publish sends an event without letting a slow or failed broker affect the
// request outcome.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		slog.Warn("Event publish failed", "type", e.Type, "invoice_id", e.InvoiceID, "error", err)
	}
}
