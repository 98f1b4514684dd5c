package purchase

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mediaforge/mediaforge-api/internal/middleware"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/payment"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
	"github.com/mediaforge/mediaforge-api/internal/pkg/validator"
)

const maxWebhookBody = 64 << 10

// Handler handles checkout HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates purchase handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CheckoutRequest struct {
	PackageID string `json:"packageId" validate:"required,slug"`
}

type ListResponse struct {
	Purchases []Purchase `json:"purchases"`
}

// CreateCheckoutSession handles POST /stripe/create-checkout-session
// @Summary Start a credit package checkout
// @Tags Purchase
// @Security BearerAuth
// @Param request body CheckoutRequest true "Package"
// @Success 200 {object} CheckoutResponse
// @Failure 400,401,429,500 {object} response.ErrorBody
// @Router /stripe/create-checkout-session [post]
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.CreateCheckoutSession(r.Context(), middleware.GetUserID(r.Context()), req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPackage):
			response.BadRequest(w, "Invalid package")
		case errors.Is(err, ErrNotConfigured):
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "Payments are not configured", err)
		default:
			errorhandler.Internal(r.Context(), w, err)
		}
		return
	}
	response.OK(w, out)
}

// Webhook handles POST /stripe/webhook
// @Summary Stripe webhook receiver
// @Tags Purchase Webhooks
// @Param Stripe-Signature header string true "Signature"
// @Success 200 {object} map[string]bool
// @Router /stripe/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Invalid payload")
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		response.OK(w, map[string]bool{"received": true})
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, payment.ErrInvalidPayload):
		response.BadRequest(w, "Invalid signature")
	default:
		// non-2xx makes the provider retry
		errorhandler.Internal(r.Context(), w, err)
	}
}

// List handles GET /purchases
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListPurchases(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, ListResponse{Purchases: items})
}

// StripeRoutes returns the checkout router. The webhook is authenticated by signature only.
func (h *Handler) StripeRoutes(authMiddleware, limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/webhook", h.Webhook)
	r.With(authMiddleware, limiter).Post("/create-checkout-session", h.CreateCheckoutSession)

	return r
}

// Routes returns purchase history router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)

	return r
}
