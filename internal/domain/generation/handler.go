package generation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/middleware"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
	"github.com/mediaforge/mediaforge-api/internal/pkg/validator"
)

// Handler handles generation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates generation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CreateRequest struct {
	Feature  string         `json:"feature" validate:"required,slug"`
	Provider string         `json:"provider" validate:"required,slug"`
	Prompt   string         `json:"prompt" validate:"required,max=4000"`
	Params   map[string]any `json:"params,omitempty"`
}

type ListResponse struct {
	Generations []Generation `json:"generations"`
}

// Create handles POST /generations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	g, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), CreateInput{
		Feature:  req.Feature,
		Provider: req.Provider,
		Prompt:   req.Prompt,
		Params:   req.Params,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyPrompt) {
			response.BadRequest(w, "Prompt is required")
			return
		}
		credit.WriteDeductError(w, r, err)
		return
	}
	response.Accepted(w, g)
}

// List handles GET /generations
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, ListResponse{Generations: items})
}

// Get handles GET /generations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid generation ID")
		return
	}

	g, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Generation not found")
			return
		}
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, g)
}

// Routes returns generation router. limiter guards job creation only.
func (h *Handler) Routes(authMiddleware, limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.With(limiter).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	return r
}
