package pricing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
	"github.com/mediaforge/mediaforge-api/internal/pkg/validator"
)

// Handler serves admin pricing endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type updatePriceRequest struct {
	Feature  string `json:"feature" validate:"required,slug,max=64"`
	Provider string `json:"provider" validate:"required,slug,max=64"`
	Credits  int    `json:"credits" validate:"gte=0"`
}

type upsertPackageRequest struct {
	Name       string `json:"name" validate:"required,max=128"`
	Credits    int    `json:"credits" validate:"gt=0"`
	PriceCents int    `json:"priceCents" validate:"gte=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
	IsActive   *bool  `json:"isActive"`
	IsFree     bool   `json:"isFree"`
}

// ListPricing handles GET /admin/pricing
func (h *Handler) ListPricing(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"pricing":  h.service.ListFeaturePricing(),
		"packages": h.service.table.allPackages(),
	})
}

// UpdatePricing handles PUT /admin/pricing
func (h *Handler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.service.UpdateFeaturePrice(r.Context(), req.Feature, req.Provider, req.Credits)
	if err != nil {
		if errors.Is(err, ErrInvalidPrice) {
			response.BadRequest(w, err.Error())
			return
		}
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, p)
}

// UpsertPackage handles PUT /admin/packages/{id}
func (h *Handler) UpsertPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if validator.ValidateVar(id, "required,slug,max=64") != nil {
		response.BadRequest(w, "Invalid package id")
		return
	}

	var req upsertPackageRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	p, err := h.service.UpsertPackage(r.Context(), Package{
		ID:         id,
		Name:       req.Name,
		Credits:    req.Credits,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		IsActive:   active,
		IsFree:     req.IsFree,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPrice) {
			response.BadRequest(w, "Paid packages need a positive price")
			return
		}
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, p)
}

// Routes mounts under /admin, behind auth and admin role middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/pricing", h.ListPricing)
	r.Put("/pricing", h.UpdatePricing)
	r.Put("/packages/{id}", h.UpsertPackage)
}
