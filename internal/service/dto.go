package service

import (
	"time"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

type clientDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type itemDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

type invoiceDTO struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	InvoiceNumber    string    `json:"invoiceNumber"`
	IssueDate        string    `json:"issueDate"`
	DueDate          string    `json:"dueDate"`
	FromBusinessName string    `json:"fromBusinessName"`
	FromEmail        string    `json:"fromEmail"`
	FromAddress      string    `json:"fromAddress"`
	FromPhone        string    `json:"fromPhone"`
	FromGST          string    `json:"fromGst"`
	Client           clientDTO `json:"client"`
	Items            []itemDTO `json:"items"`
	Subtotal         float64   `json:"subtotal"`
	Tax              float64   `json:"tax"`
	Total            float64   `json:"total"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	TaxPercent       float64   `json:"taxPercent"`
	LogoURL          *string   `json:"logoDataUrl"`
	StampURL         *string   `json:"stampDataUrl"`
	SignatureURL     *string   `json:"signatureDataUrl"`
	SignatureName    string    `json:"signatureName"`
	SignatureTitle   string    `json:"signatureTitle"`
	Notes            string    `json:"notes"`
	CreatedAt        string    `json:"createdAt"`
	UpdatedAt        string    `json:"updatedAt"`
}

func toInvoiceDTO(inv *models.Invoice) invoiceDTO {
	items := make([]itemDTO, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = itemDTO{
			ID:          it.ID,
			Description: it.Description,
			Qty:         it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount(),
		}
	}
	return invoiceDTO{
		ID:               inv.ID,
		Owner:            inv.Owner,
		InvoiceNumber:    inv.InvoiceNumber,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		FromBusinessName: inv.FromBusinessName,
		FromEmail:        inv.FromEmail,
		FromAddress:      inv.FromAddress,
		FromPhone:        inv.FromPhone,
		FromGST:          inv.FromGST,
		Client: clientDTO{
			Name:    inv.Client.Name,
			Email:   inv.Client.Email,
			Address: inv.Client.Address,
			Phone:   inv.Client.Phone,
		},
		Items:          items,
		Subtotal:       inv.Subtotal,
		Tax:            inv.Tax,
		Total:          inv.Total,
		Currency:       inv.Currency,
		Status:         string(inv.Status),
		TaxPercent:     inv.TaxPercent,
		LogoURL:        nullable(inv.LogoURL),
		StampURL:       nullable(inv.StampURL),
		SignatureURL:   nullable(inv.SignatureURL),
		SignatureName:  inv.SignatureName,
		SignatureTitle: inv.SignatureTitle,
		Notes:          inv.Notes,
		CreatedAt:      timestamp(inv.CreatedAt),
		UpdatedAt:      timestamp(inv.UpdatedAt),
	}
}

type profileDTO struct {
	ID                  string  `json:"id"`
	Owner               string  `json:"owner"`
	BusinessName        string  `json:"businessName"`
	Email               string  `json:"email"`
	Address             string  `json:"address"`
	Phone               string  `json:"phone"`
	GST                 string  `json:"gst"`
	LogoURL             *string `json:"logoUrl"`
	StampURL            *string `json:"stampUrl"`
	SignatureURL        *string `json:"signatureUrl"`
	SignatureOwnerName  string  `json:"signatureOwnerName"`
	SignatureOwnerTitle string  `json:"signatureOwnerTitle"`
	DefaultTaxPercent   float64 `json:"defaultTaxPercent"`
	CreatedAt           string  `json:"createdAt"`
	UpdatedAt           string  `json:"updatedAt"`
}

func toProfileDTO(p *models.BusinessProfile) profileDTO {
	return profileDTO{
		ID:                  p.ID,
		Owner:               p.Owner,
		BusinessName:        p.BusinessName,
		Email:               p.Email,
		Address:             p.Address,
		Phone:               p.Phone,
		GST:                 p.GST,
		LogoURL:             nullable(p.LogoURL),
		StampURL:            nullable(p.StampURL),
		SignatureURL:        nullable(p.SignatureURL),
		SignatureOwnerName:  p.SignatureOwnerName,
		SignatureOwnerTitle: p.SignatureOwnerTitle,
		DefaultTaxPercent:   p.DefaultTaxPercent,
		CreatedAt:           timestamp(p.CreatedAt),
		UpdatedAt:           timestamp(p.UpdatedAt),
	}
}

// nullable renders empty asset URLs as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timestamp(unix int64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
