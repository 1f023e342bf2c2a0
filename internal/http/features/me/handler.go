package me

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/middleware"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
)

// IdentityGetter loads an identity by id.
type IdentityGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
}

// Handler handles the profile endpoint.
type Handler struct {
	logger     *slog.Logger
	identities IdentityGetter
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, identities IdentityGetter) *Handler {
	return &Handler{
		logger:     logger,
		identities: identities,
	}
}

// ProfileResponse is the profile of the signed-in identity.
type ProfileResponse struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth *string   `json:"dateOfBirth"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GetMe returns the current identity's profile.
// GET /api/auth/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	identityID, ok := middleware.GetIdentityID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	identity, err := h.identities.GetByID(r.Context(), identityID)
	if err != nil {
		if domain.IsNotFound(err) {
			httputil.Error(w, http.StatusUnauthorized, "Not authorized, user not found")
			return
		}
		h.logger.Error("failed to load profile", "error", err, "identity_id", identityID)
		httputil.Error(w, http.StatusInternalServerError, "Server error")
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{
		ID:          identity.ID.String(),
		Name:        identity.Name,
		Email:       identity.Email,
		DateOfBirth: domain.FormatDate(identity.DateOfBirth),
		CreatedAt:   identity.CreatedAt,
		UpdatedAt:   identity.UpdatedAt,
	})
}
