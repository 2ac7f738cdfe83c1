package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/httpx"
	"github.com/ayush/lecture-notes/backend/internal/models"
)

const maxBodyBytes = 1 << 20

// Response is the envelope every auth endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// SignUp registers an unverified account.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if _, err := h.svc.SignUp(r.Context(), req); err != nil {
		h.fail(w, r, "sign up", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Account created. Check your email for the OTP.",
	})
}

// VerifyOTP confirms account ownership with the mailed code.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	already, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, "verify otp", err)
		return
	}
	msg := "Account verified"
	if already {
		msg = "Already verified"
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Success: true, Message: msg})
}

// ResendOTP issues a new code to an unverified account.
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.ResendOTPRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	already, err := h.svc.ResendOTP(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, "resend otp", err)
		return
	}
	msg := "OTP sent"
	if already {
		msg = "Already verified"
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Success: true, Message: msg})
}

// SignIn checks credentials and returns the role for client-side routing.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	role, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "sign in", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Success: true, Message: "Login successful", Role: role})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), op+" failed", "err", err)
	}
	resp := Response{Message: apperr.PublicMessage(err, "Server error")}
	var e *apperr.Error
	if errors.As(err, &e) && status < http.StatusInternalServerError {
		resp.Code = e.Code
	}
	httpx.WriteJSON(w, status, resp)
}
