// Package server exposes the catalog, comparison, and reconciliation
// operations over HTTP for internal tools.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-recon/internal/catalog"
	"github.com/sells-group/invoice-recon/internal/compare"
	"github.com/sells-group/invoice-recon/internal/model"
	"github.com/sells-group/invoice-recon/internal/reconcile"
)

// Server wires the HTTP surface to the catalog store and the two batch
// operations.
type Server struct {
	store    catalog.Store
	engine   *compare.Engine
	importer *reconcile.Importer
}

// New returns a Server over the given store and operations.
func New(store catalog.Store, engine *compare.Engine, importer *reconcile.Importer) *Server {
	return &Server{store: store, engine: engine, importer: importer}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/suppliers", s.handleListSuppliers)
		r.Post("/suppliers", s.handleAddSupplier)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/gtin/{gtin}", s.handleProductByGTIN)
		r.Get("/products/code/{supplier}/{code}", s.handleProductByCode)
		r.Post("/compare", s.handleCompare)
		r.Post("/reconcile", s.handleReconcile)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.store.ListSuppliers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, suppliers)
}

func (s *Server) handleAddSupplier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	supplier, err := s.store.AddSupplier(r.Context(), req.ID, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, supplier)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleProductByGTIN(w http.ResponseWriter, r *http.Request) {
	gtin, ok := model.NormalizeGTIN(chi.URLParam(r, "gtin"))
	if !ok || gtin == "" {
		http.Error(w, `{"error":"invalid gtin"}`, http.StatusBadRequest)
		return
	}
	product, err := s.store.FindProductByGTIN(r.Context(), gtin)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleProductByCode(w http.ResponseWriter, r *http.Request) {
	mapping, err := s.store.FindMapping(r.Context(), chi.URLParam(r, "supplier"), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, err)
		return
	}
	product, err := s.store.FindProductByID(r.Context(), mapping.ProductID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"product": product,
		"mapping": mapping,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetSupplierID string           `json:"target_supplier_id"`
		Items            []model.LineItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.TargetSupplierID == "" {
		http.Error(w, `{"error":"target_supplier_id is required"}`, http.StatusBadRequest)
		return
	}
	report, err := s.engine.Run(r.Context(), req.Items, req.TargetSupplierID)
	if err != nil {
		if eris.Is(err, compare.ErrUnknownSupplier) {
			http.Error(w, `{"error":"unknown target supplier"}`, http.StatusBadRequest)
			return
		}
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetSupplierID string                `json:"target_supplier_id"`
		Records          []model.ComparisonRow `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.TargetSupplierID == "" {
		http.Error(w, `{"error":"target_supplier_id is required"}`, http.StatusBadRequest)
		return
	}
	report, err := s.importer.Apply(r.Context(), req.Records, req.TargetSupplierID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, catalog.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case eris.Is(err, catalog.ErrValidation):
		http.Error(w, `{"error":"`+eris.Cause(err).Error()+`"}`, http.StatusBadRequest)
	default:
		zap.L().Error("request failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
