package referral

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mediaforge/mediaforge-api/internal/middleware"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type attachRequest struct {
	Code string `json:"code"`
}

type attachResponse struct {
	OK       bool `json:"ok"`
	Attached bool `json:"attached"`
}

// GetStats handles GET /referrals
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, stats)
}

// CreateLink handles POST /referrals
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.GetOrCreateReferralLink(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, map[string]string{"code": code})
}

// Attach handles POST /referrals/attach. The code comes from the body or the ref cookie.
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	code := req.Code
	fromCookie := false
	if code == "" {
		code = middleware.ReferralCodeFromCookie(r)
		fromCookie = code != ""
	}
	if code == "" {
		response.OK(w, attachResponse{OK: true, Attached: false})
		return
	}

	attached, err := h.service.AttachReferralOnSignup(r.Context(), middleware.GetUserID(r.Context()), code)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}

	if fromCookie {
		http.SetCookie(w, &http.Cookie{Name: middleware.ReferralCookie, Value: "", Path: "/", MaxAge: -1})
	}
	response.OK(w, attachResponse{OK: true, Attached: attached})
}

// Routes returns referral router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.GetStats)
	r.Post("/", h.CreateLink)
	r.Post("/attach", h.Attach)

	return r
}
