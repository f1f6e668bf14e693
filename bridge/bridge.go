// Package bridge exposes the autofill pipeline over HTTP and MCP. The HTTP
// surface serves the extension popup on loopback; the MCP tools serve agent
// integrations over stdio.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/superfill/sfc/autofill"
	"github.com/superfill/sfc/connectivity"
	"github.com/superfill/sfc/idgen"
	"github.com/superfill/sfc/keyvault"
	"github.com/superfill/sfc/memcat"
	"github.com/superfill/sfc/memstore"
)

// maxBodyBytes caps request bodies; sidebar payloads stay well under this.
const maxBodyBytes = 1 << 20

// Runner executes a full autofill pass. *autofill.Service implements it.
type Runner interface {
	Run(ctx context.Context, pageURL string) autofill.RunResult
}

// Service wires the store, key vault, router and autofill runner into
// transport handlers.
type Service struct {
	store      *memstore.Store
	vault      *keyvault.Vault
	router     *connectivity.Router
	runner     Runner
	classifier *memcat.Categorizer
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCategorizer replaces the default rule-based categorizer, typically
// with an AI-assisted one.
func WithCategorizer(c *memcat.Categorizer) Option {
	return func(s *Service) { s.classifier = c }
}

func New(store *memstore.Store, vault *keyvault.Vault, router *connectivity.Router, runner Runner, opts ...Option) *Service {
	s := &Service{
		store:      store,
		vault:      vault,
		router:     router,
		runner:     runner,
		classifier: memcat.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHTTP mounts the API on the chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limitBody)

		r.Post("/autofill", s.handleAutofill)
		r.Post("/detect-forms", s.handleDetectForms)

		r.Post("/preview/show", s.relay(autofill.ServiceShowPreview))
		r.Post("/preview/close", s.relay(autofill.ServiceClosePreview))
		r.Post("/preview/apply", s.relay(autofill.ServiceApplyFill))

		r.Get("/memories", s.handleListMemories)
		r.Post("/memories", s.handleAddMemory)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Put("/memories/{id}", s.handleUpdateMemory)
		r.Delete("/memories/{id}", s.handleDeleteMemory)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)

		r.Get("/keys/{provider}", s.handleKeyStatus)
		r.Put("/keys/{provider}", s.handleStoreKey)
		r.Delete("/keys/{provider}", s.handleDeleteKey)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- autofill ---

type autofillRequest struct {
	URL string `json:"url"`
}

func (s *Service) handleAutofill(w http.ResponseWriter, r *http.Request) {
	var req autofillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	res := s.runner.Run(r.Context(), req.URL)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Service) handleDetectForms(w http.ResponseWriter, r *http.Request) {
	var req autofillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	payload, err := json.Marshal(autofill.DetectFormsRequest{URL: req.URL})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	raw, err := s.router.Call(r.Context(), autofill.ServiceDetectForms, payload)
	if err != nil {
		s.logger.Error("bridge: detect_forms dispatch failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// relay forwards the request body unchanged to an in-process service and
// writes its response back. The preview endpoints need no translation.
func (s *Service) relay(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		raw, err := s.router.Call(r.Context(), service, payload)
		if err != nil {
			s.logger.Error("bridge: dispatch failed", "service", service, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// --- memories ---

func (s *Service) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	memories, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("bridge: list memories", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if memories == nil {
		memories = []*memstore.MemoryEntry{}
	}
	writeJSON(w, http.StatusOK, memories)
}

func (s *Service) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var m memstore.MemoryEntry
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Imports carry their own IDs; anything client-supplied must be a UUID.
	if m.ID != "" {
		id, err := idgen.Parse(m.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid memory id")
			return
		}
		m.ID = id
	}
	// Entries arriving without a category get auto-categorized, the way the
	// popup's entry form suggests one while the user types.
	if m.Category == "" {
		res := s.classifier.Analyze(r.Context(), m.Answer, m.Question)
		m.Category = res.Category
		if len(m.Tags) == 0 {
			m.Tags = res.Tags
		}
	}
	if err := s.store.Insert(r.Context(), &m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Service) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, memstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Service) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var m memstore.MemoryEntry
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	m.ID = chi.URLParam(r, "id")
	err := s.store.Update(r.Context(), &m)
	if errors.Is(err, memstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Service) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, memstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- settings ---

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Service) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var cfg memstore.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.SaveSettings(r.Context(), cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- provider keys ---

type storeKeyRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Service) handleKeyStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": provider,
		"present":  s.vault.HasKey(r.Context(), provider),
	})
}

func (s *Service) handleStoreKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "apiKey required")
		return
	}
	provider := chi.URLParam(r, "provider")
	if err := s.vault.StoreKey(r.Context(), provider, req.APIKey); err != nil {
		s.logger.Error("bridge: store key", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	err := s.vault.DeleteKey(r.Context(), provider)
	if errors.Is(err, keyvault.ErrNoKey) {
		writeError(w, http.StatusNotFound, "no key stored")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
