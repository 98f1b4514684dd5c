package credit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/middleware"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
	"github.com/mediaforge/mediaforge-api/internal/pkg/validator"
)

// Handler handles credit HTTP requests
type Handler struct {
	service  *Service
	packages PackageCatalog
}

// NewHandler creates credit handler
func NewHandler(service *Service, packages PackageCatalog) *Handler {
	return &Handler{service: service, packages: packages}
}

// GetBalance handles GET /credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	uc, err := h.service.GetBalance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, uc)
}

// ListPackages handles GET /credits/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	active := h.packages.ListActivePackages()
	items := make([]PackageResponse, len(active))
	for i, p := range active {
		items[i] = PackageResponseFromEntity(p)
	}
	response.OK(w, PackagesResponse{Packages: items})
}

// AddFreePack handles POST /credits/add-free-pack
func (h *Handler) AddFreePack(w http.ResponseWriter, r *http.Request) {
	var req AddFreePackRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	pkg, err := h.packages.GetPackage(req.PackageID)
	if err != nil || !pkg.IsFree || !pkg.IsActive {
		response.BadRequest(w, "Invalid free package")
		return
	}

	result, err := h.service.ClaimFreePackage(r.Context(), middleware.GetUserID(r.Context()), pkg)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrPackageNotFound):
			response.BadRequest(w, "Invalid free package")
		case errors.Is(err, ErrAlreadyClaimed):
			response.Conflict(w, "Free package already claimed")
		default:
			errorhandler.Internal(r.Context(), w, err)
		}
		return
	}
	response.OK(w, result)
}

// Deduct handles POST /credits/deduct
func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req DeductRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.DeductCredits(r.Context(), middleware.GetUserID(r.Context()), req.Feature, req.Provider, Metadata{})
	if err != nil {
		WriteDeductError(w, r, err)
		return
	}
	response.OK(w, result)
}

// WriteDeductError maps DeductCredits failures to responses.
func WriteDeductError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		response.PaymentRequired(w, InsufficientCreditsResponse{
			Error:    "Insufficient credits",
			Required: insufficient.Required,
			Balance:  insufficient.Balance,
		})
	case errors.Is(err, pricing.ErrPricingNotFound):
		response.BadRequest(w, "Unknown feature or provider")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

// History handles GET /credits/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset := 20, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	entries, err := h.service.ListEntries(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, HistoryResponse{Entries: entries})
}

// Audit handles GET /admin/credits/{userId}/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		response.BadRequest(w, "Missing user id")
		return
	}

	report, err := h.service.Audit(r.Context(), userID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, report)
}

// Routes returns credit router. Packages are public.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/packages", h.ListPackages)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/balance", h.GetBalance)
		r.Post("/add-free-pack", h.AddFreePack)
		r.Post("/deduct", h.Deduct)
		r.Get("/history", h.History)
	})

	return r
}

// AdminRoutes mounts under /admin.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/credits/{userId}/audit", h.Audit)
}
