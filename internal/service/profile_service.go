package service

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/middleware"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/uploads"
)

const msgProfileNotFound = "Business profile not found"

// ProfileService serves the /api/businessProfile routes.
type ProfileService struct {
	store   storage.Store
	uploads *uploads.Store
}

// NewProfileService creates a new ProfileService from deps.
func NewProfileService(deps Deps) *ProfileService {
	return &ProfileService{store: deps.Store, uploads: deps.Uploads}
}

// GetMyProfile returns the caller's business profile.
func (s *ProfileService) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())

	p, err := s.store.GetProfileByOwner(r.Context(), owner)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgProfileNotFound)
			return
		}
		slog.Error("GetMyProfile failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeOK(w, http.StatusOK, "", toProfileDTO(p))
}

// CreateProfile creates the caller's profile, or updates it when one exists.
func (s *ProfileService) CreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetUserID(ctx)

	in, form, err := readFields(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	existing, err := s.store.GetProfileByOwner(ctx, owner)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("CreateProfile lookup failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	files, uerr := s.saveUploads(form)
	if uerr != nil {
		slog.Error("CreateProfile upload failed", "error", uerr)
		writeBodyError(w, uerr)
		return
	}
	if err == nil {
		s.update(ctx, w, existing, in, files)
		return
	}

	p := &models.BusinessProfile{
		Owner:               owner,
		BusinessName:        firstNonEmpty(in.firstStr("businessName"), models.DefaultBusinessName),
		Email:               in.strOr("email", ""),
		Address:             in.strOr("address", ""),
		Phone:               in.strOr("phone", ""),
		GST:                 in.strOr("gst", ""),
		LogoURL:             firstNonEmpty(files.Logo, in.firstStr("logoUrl")),
		StampURL:            firstNonEmpty(files.Stamp, in.firstStr("stampUrl")),
		SignatureURL:        firstNonEmpty(files.Signature, in.firstStr("signatureUrl")),
		SignatureOwnerName:  in.strOr("signatureOwnerName", ""),
		SignatureOwnerTitle: in.strOr("signatureOwnerTitle", ""),
		DefaultTaxPercent:   models.DefaultProfileTaxPercent,
	}
	if tax, ok := in.firstNumber("defaultTaxPercent"); ok {
		p.DefaultTaxPercent = tax
	}

	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateProfile) {
			// A concurrent request created it first.
			existing, gerr := s.store.GetProfileByOwner(ctx, owner)
			if gerr == nil {
				s.update(ctx, w, existing, in, files)
				return
			}
			err = gerr
		}
		discardUploads(s.uploads, files)
		slog.Error("CreateProfile failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	slog.Info("Business profile created", "profile_id", p.ID, "owner", owner)
	writeOK(w, http.StatusCreated, "Business profile created successfully", toProfileDTO(p))
}

// UpdateProfile applies the supplied fields to a profile owned by the caller.
func (s *ProfileService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	existing, err := s.store.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgProfileNotFound)
			return
		}
		slog.Error("UpdateProfile lookup failed", "profile_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if existing.Owner != middleware.GetUserID(ctx) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	in, form, err := readFields(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	files, err := s.saveUploads(form)
	if err != nil {
		slog.Error("UpdateProfile upload failed", "error", err)
		writeBodyError(w, err)
		return
	}

	s.update(ctx, w, existing, in, files)
}

func (s *ProfileService) update(ctx context.Context, w http.ResponseWriter, p *models.BusinessProfile, in fields, files uploads.URLs) {
	setString(in, "businessName", &p.BusinessName)
	setString(in, "email", &p.Email)
	setString(in, "address", &p.Address)
	setString(in, "phone", &p.Phone)
	setString(in, "gst", &p.GST)
	setString(in, "signatureOwnerName", &p.SignatureOwnerName)
	setString(in, "signatureOwnerTitle", &p.SignatureOwnerTitle)
	setString(in, "logoUrl", &p.LogoURL)
	setString(in, "stampUrl", &p.StampURL)
	setString(in, "signatureUrl", &p.SignatureURL)
	p.LogoURL = firstNonEmpty(files.Logo, p.LogoURL)
	p.StampURL = firstNonEmpty(files.Stamp, p.StampURL)
	p.SignatureURL = firstNonEmpty(files.Signature, p.SignatureURL)
	if tax, ok := in.firstNumber("defaultTaxPercent"); ok {
		p.DefaultTaxPercent = tax
	}

	if err := s.store.UpdateProfile(ctx, p); err != nil {
		discardUploads(s.uploads, files)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgProfileNotFound)
			return
		}
		slog.Error("UpdateProfile failed", "profile_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	slog.Info("Business profile updated", "profile_id", p.ID)
	writeOK(w, http.StatusOK, "Business profile updated successfully", toProfileDTO(p))
}

func (s *ProfileService) saveUploads(form *multipart.Form) (uploads.URLs, error) {
	if s.uploads == nil || form == nil {
		return uploads.URLs{}, nil
	}
	return s.uploads.SaveForm(form)
}
