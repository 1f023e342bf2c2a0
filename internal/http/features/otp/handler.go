package otp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/auth"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
)

// CodeService issues and checks one-time codes.
type CodeService interface {
	RequestCode(ctx context.Context, req auth.CodeRequest) (*auth.RequestResult, error)
	VerifyCode(ctx context.Context, req auth.VerifyRequest) (*auth.VerifyResult, error)
}

// Handler handles the one-time code endpoints.
type Handler struct {
	codes  CodeService
	logger *slog.Logger
}

// NewHandler creates a new OTP handler.
func NewHandler(codes CodeService, logger *slog.Logger) *Handler {
	return &Handler{
		codes:  codes,
		logger: logger,
	}
}

// RequestCodeRequest is the body of POST /api/auth/request-otp.
type RequestCodeRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	IsSignin    bool   `json:"isSignin"`
}

// MessageResponse carries a human-readable status line.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyCodeRequest is the body of POST /api/auth/verify-otp.
type VerifyCodeRequest struct {
	Email        string `json:"email"`
	OTP          string `json:"otp"`
	KeepLoggedIn bool   `json:"keepLoggedIn"`
}

// VerifyCodeResponse is returned once a code is accepted.
type VerifyCodeResponse struct {
	Message string                 `json:"message"`
	Token   string                 `json:"token"`
	User    domain.IdentitySummary `json:"user"`
}

// RequestCode sends a fresh code for signup or signin.
// POST /api/auth/request-otp
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.DecodeError(w, err)
		return
	}

	mode := auth.ModeSignup
	if req.IsSignin {
		mode = auth.ModeSignin
	}

	result, err := h.codes.RequestCode(r.Context(), auth.CodeRequest{
		Mode:        mode,
		Email:       req.Email,
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		h.writeRequestError(w, err)
		return
	}

	message := "Verification code sent to your email."
	if result.Created {
		message = "Account created! Verification code sent to your email."
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) writeRequestError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.Error(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrIdentityNotFound):
		httputil.Error(w, http.StatusBadRequest, "No account found with this email. Please sign up first.")
	case errors.Is(err, domain.ErrIdentityAlreadyExists):
		httputil.Error(w, http.StatusBadRequest, "User already exists. Please sign in instead.")
	case errors.Is(err, domain.ErrDeliveryFailed):
		httputil.Error(w, http.StatusInternalServerError, "Error sending verification code. Please try again.")
	default:
		h.logger.Error("request code failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Error processing request")
	}
}

// VerifyCode exchanges a valid code for a session token.
// POST /api/auth/verify-otp
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.DecodeError(w, err)
		return
	}

	result, err := h.codes.VerifyCode(r.Context(), auth.VerifyRequest{
		Email:           req.Email,
		Code:            req.OTP,
		ExtendedSession: req.KeepLoggedIn,
	})
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	message := "Signed in successfully!"
	if result.FirstVerification {
		message = "User registered successfully!"
	}
	httputil.JSON(w, http.StatusCreated, VerifyCodeResponse{
		Message: message,
		Token:   result.Token,
		User:    result.Identity,
	})
}

func (h *Handler) writeVerifyError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.Error(w, http.StatusBadRequest, validationErr.Message)
	case domain.IsNotFound(err):
		httputil.Error(w, http.StatusBadRequest, "Invalid request. Please sign up first.")
	case errors.Is(err, domain.ErrCodeExpired):
		httputil.Error(w, http.StatusBadRequest, "OTP has expired. Please request a new one.")
	case errors.Is(err, domain.ErrCodeMismatch):
		httputil.Error(w, http.StatusBadRequest, "Invalid OTP.")
	default:
		h.logger.Error("verify code failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Server error")
	}
}
