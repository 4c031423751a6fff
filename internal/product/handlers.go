package product

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/respond"
	"storefront/internal/store"
)

// Handler exposes the catalog service over HTTP.
type Handler struct {
	service *Service
}

// NewHandler wires the product endpoints.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.Wrap(apperr.NotFound, "product not found", err)
	}
	respond.Error(w, h.service.logger, err, "path", r.URL.Path)
}

// List returns every product. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.All(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, products)
}

// Featured returns the featured products.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Featured(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, products)
}

// Get returns one product by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	CountInStock int      `json:"countInStock"`
	ImageURL     string   `json:"imageUrl"`
	Category     []string `json:"category"`
	IsFeatured   bool     `json:"isFeatured"`
}

// Create inserts a product. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Name == "" || req.Price < 0 {
		h.respondErr(w, r, apperr.New(apperr.Validation, "product requires a name and a non-negative price"))
		return
	}

	product := &models.Product{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		CountInStock: req.CountInStock,
		ImageURL:     req.ImageURL,
		Category:     req.Category,
		IsFeatured:   req.IsFeatured,
	}
	if err := h.service.Create(r.Context(), product); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, product)
}

// Delete removes a product. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// ToggleFeatured flips the featured flag. Admin only.
func (h *Handler) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.ToggleFeatured(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, product)
}
