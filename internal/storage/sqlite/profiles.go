package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

const profileColumns = `id, owner, business_name, email, address, phone, gst,
	logo_url, stamp_url, signature_url, signature_owner_name, signature_owner_title,
	default_tax_percent, created_at, updated_at`

// CreateProfile inserts a new business profile.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *models.BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO business_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Owner, p.BusinessName, p.Email, p.Address, p.Phone, p.GST,
		p.LogoURL, p.StampURL, p.SignatureURL, p.SignatureOwnerName, p.SignatureOwnerTitle,
		p.DefaultTaxPercent, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "business_profiles.owner") {
			return fmt.Errorf("failed to create profile for %s: %w", p.Owner, storage.ErrDuplicateProfile)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a business profile by ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.BusinessProfile, error) {
	return s.getProfileWhere(ctx, "id = ?", id)
}

// GetProfileByOwner retrieves the owner's business profile.
func (s *SQLiteStore) GetProfileByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	return s.getProfileWhere(ctx, "owner = ?", owner)
}

func (s *SQLiteStore) getProfileWhere(ctx context.Context, where string, arg any) (*models.BusinessProfile, error) {
	p := &models.BusinessProfile{}
	err := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM business_profiles WHERE "+where, arg).Scan(
		&p.ID, &p.Owner, &p.BusinessName, &p.Email, &p.Address, &p.Phone, &p.GST,
		&p.LogoURL, &p.StampURL, &p.SignatureURL, &p.SignatureOwnerName, &p.SignatureOwnerTitle,
		&p.DefaultTaxPercent, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("business profile %v: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business profile: %w", err)
	}
	return p, nil
}

// UpdateProfile replaces a business profile. The owner cannot change.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, p *models.BusinessProfile) error {
	p.UpdatedAt = time.Now().Unix()

	res, err := s.db.ExecContext(ctx,
		`UPDATE business_profiles SET business_name = ?, email = ?, address = ?, phone = ?, gst = ?,
			logo_url = ?, stamp_url = ?, signature_url = ?, signature_owner_name = ?, signature_owner_title = ?,
			default_tax_percent = ?, updated_at = ?
		 WHERE id = ?`,
		p.BusinessName, p.Email, p.Address, p.Phone, p.GST,
		p.LogoURL, p.StampURL, p.SignatureURL, p.SignatureOwnerName, p.SignatureOwnerTitle,
		p.DefaultTaxPercent, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update business profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("business profile %s: %w", p.ID, storage.ErrNotFound)
	}
	return nil
}
