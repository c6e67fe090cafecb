package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

// ==================== Invoice models ====================

type invoiceDoc struct {
	ID               bson.ObjectID `bson:"_id"`
	Owner            string        `bson:"owner"`
	InvoiceNumber    string        `bson:"invoice_number"`
	IssueDate        string        `bson:"issue_date"`
	DueDate          string        `bson:"due_date"`
	FromBusinessName string        `bson:"from_business_name"`
	FromEmail        string        `bson:"from_email"`
	FromAddress      string        `bson:"from_address"`
	FromPhone        string        `bson:"from_phone"`
	FromGST          string        `bson:"from_gst"`
	Client           clientDoc     `bson:"client"`
	Items            []itemDoc     `bson:"items"`
	Currency         string        `bson:"currency"`
	Status           string        `bson:"status"`
	TaxPercent       float64       `bson:"tax_percent"`
	Subtotal         float64       `bson:"subtotal"`
	Tax              float64       `bson:"tax"`
	Total            float64       `bson:"total"`
	LogoURL          string        `bson:"logo_url,omitempty"`
	StampURL         string        `bson:"stamp_url,omitempty"`
	SignatureURL     string        `bson:"signature_url,omitempty"`
	SignatureName    string        `bson:"signature_name"`
	SignatureTitle   string        `bson:"signature_title"`
	Notes            string        `bson:"notes"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}

type clientDoc struct {
	Name    string `bson:"name"`
	Email   string `bson:"email"`
	Address string `bson:"address"`
	Phone   string `bson:"phone"`
}

type itemDoc struct {
	ID          string  `bson:"id"`
	Description string  `bson:"description"`
	Quantity    float64 `bson:"qty"`
	UnitPrice   float64 `bson:"unit_price"`
}

func toInvoiceDoc(inv *models.Invoice, oid bson.ObjectID) *invoiceDoc {
	items := make([]itemDoc, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = itemDoc{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return &invoiceDoc{
		ID:               oid,
		Owner:            inv.Owner,
		InvoiceNumber:    inv.InvoiceNumber,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		FromBusinessName: inv.FromBusinessName,
		FromEmail:        inv.FromEmail,
		FromAddress:      inv.FromAddress,
		FromPhone:        inv.FromPhone,
		FromGST:          inv.FromGST,
		Client: clientDoc{
			Name:    inv.Client.Name,
			Email:   inv.Client.Email,
			Address: inv.Client.Address,
			Phone:   inv.Client.Phone,
		},
		Items:          items,
		Currency:       inv.Currency,
		Status:         string(inv.Status),
		TaxPercent:     inv.TaxPercent,
		Subtotal:       inv.Subtotal,
		Tax:            inv.Tax,
		Total:          inv.Total,
		LogoURL:        inv.LogoURL,
		StampURL:       inv.StampURL,
		SignatureURL:   inv.SignatureURL,
		SignatureName:  inv.SignatureName,
		SignatureTitle: inv.SignatureTitle,
		Notes:          inv.Notes,
		CreatedAt:      time.Unix(inv.CreatedAt, 0).UTC(),
		UpdatedAt:      time.Unix(inv.UpdatedAt, 0).UTC(),
	}
}

func fromInvoiceDoc(d *invoiceDoc) *models.Invoice {
	items := make([]models.LineItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = models.LineItem{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return &models.Invoice{
		ID:               d.ID.Hex(),
		Owner:            d.Owner,
		InvoiceNumber:    d.InvoiceNumber,
		IssueDate:        d.IssueDate,
		DueDate:          d.DueDate,
		FromBusinessName: d.FromBusinessName,
		FromEmail:        d.FromEmail,
		FromAddress:      d.FromAddress,
		FromPhone:        d.FromPhone,
		FromGST:          d.FromGST,
		Client: models.Client{
			Name:    d.Client.Name,
			Email:   d.Client.Email,
			Address: d.Client.Address,
			Phone:   d.Client.Phone,
		},
		Items:          items,
		Currency:       d.Currency,
		Status:         models.Status(d.Status),
		TaxPercent:     d.TaxPercent,
		Subtotal:       d.Subtotal,
		Tax:            d.Tax,
		Total:          d.Total,
		LogoURL:        d.LogoURL,
		StampURL:       d.StampURL,
		SignatureURL:   d.SignatureURL,
		SignatureName:  d.SignatureName,
		SignatureTitle: d.SignatureTitle,
		Notes:          d.Notes,
		CreatedAt:      d.CreatedAt.Unix(),
		UpdatedAt:      d.UpdatedAt.Unix(),
	}
}

// ==================== Business profile models ====================

type profileDoc struct {
	ID                  bson.ObjectID `bson:"_id"`
	Owner               string        `bson:"owner"`
	BusinessName        string        `bson:"business_name"`
	Email               string        `bson:"email"`
	Address             string        `bson:"address"`
	Phone               string        `bson:"phone"`
	GST                 string        `bson:"gst"`
	LogoURL             string        `bson:"logo_url,omitempty"`
	StampURL            string        `bson:"stamp_url,omitempty"`
	SignatureURL        string        `bson:"signature_url,omitempty"`
	SignatureOwnerName  string        `bson:"signature_owner_name"`
	SignatureOwnerTitle string        `bson:"signature_owner_title"`
	DefaultTaxPercent   float64       `bson:"default_tax_percent"`
	CreatedAt           time.Time     `bson:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at"`
}

func toProfileDoc(p *models.BusinessProfile, oid bson.ObjectID) *profileDoc {
	return &profileDoc{
		ID:                  oid,
		Owner:               p.Owner,
		BusinessName:        p.BusinessName,
		Email:               p.Email,
		Address:             p.Address,
		Phone:               p.Phone,
		GST:                 p.GST,
		LogoURL:             p.LogoURL,
		StampURL:            p.StampURL,
		SignatureURL:        p.SignatureURL,
		SignatureOwnerName:  p.SignatureOwnerName,
		SignatureOwnerTitle: p.SignatureOwnerTitle,
		DefaultTaxPercent:   p.DefaultTaxPercent,
		CreatedAt:           time.Unix(p.CreatedAt, 0).UTC(),
		UpdatedAt:           time.Unix(p.UpdatedAt, 0).UTC(),
	}
}

func fromProfileDoc(d *profileDoc) *models.BusinessProfile {
	return &models.BusinessProfile{
		ID:                  d.ID.Hex(),
		Owner:               d.Owner,
		BusinessName:        d.BusinessName,
		Email:               d.Email,
		Address:             d.Address,
		Phone:               d.Phone,
		GST:                 d.GST,
		LogoURL:             d.LogoURL,
		StampURL:            d.StampURL,
		SignatureURL:        d.SignatureURL,
		SignatureOwnerName:  d.SignatureOwnerName,
		SignatureOwnerTitle: d.SignatureOwnerTitle,
		DefaultTaxPercent:   d.DefaultTaxPercent,
		CreatedAt:           d.CreatedAt.Unix(),
		UpdatedAt:           d.UpdatedAt.Unix(),
	}
}
