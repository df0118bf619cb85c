package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "healthy", "version": s.version}
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clients, err := s.deps.Store.CountClients(ctx)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	documents, err := s.deps.Store.CountDocuments(ctx)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	resp := map[string]interface{}{
		"version":         s.version,
		"total_clients":   clients,
		"total_documents": documents,
	}
	if s.deps.Archive != nil {
		if n, err := s.deps.Archive.Count(); err == nil {
			resp["archived_documents"] = n
		}
	}
	if s.deps.Files != nil {
		if n, err := s.deps.Files.Usage(); err == nil {
			resp["upload_size_bytes"] = n
		}
	}
	if n, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath, s.config.Storage.ArchiveIndexPath); err == nil {
		resp["index_size_bytes"] = n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLLMStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		s.respondJSON(w, http.StatusOK, llm.Status{Models: []llm.ModelInfo{}, Error: "no LLM configured"})
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.LLM.Status(r.Context()))
}

func (s *Server) handleLLMModels(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no LLM configured")
		return
	}
	models, err := s.deps.LLM.Models(r.Context())
	if err != nil {
		s.logger.Warn("Listing models failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	text, image := llm.CategorizeModels(models)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"text_models":  text,
		"image_models": image,
		"total":        len(models),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps storage.ErrNotFound to 404 and everything else to 500.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("Storage error", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

// respondOutcome writes a pipeline result, choosing the status from its error kind.
func (s *Server) respondOutcome(w http.ResponseWriter, o agent.Outcome, data interface{}) {
	s.respondJSON(w, statusFor(o), data)
}

func statusFor(o agent.Outcome) int {
	if o.Success {
		return http.StatusOK
	}
	switch o.ErrorKind {
	case agent.KindInput, agent.KindNoClientMatch, agent.KindNoReadableContent:
		return http.StatusBadRequest
	case agent.KindNotFound:
		return http.StatusNotFound
	case agent.KindAIUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
