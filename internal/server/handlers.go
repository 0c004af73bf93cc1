package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/indexer"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/search"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := req.Document()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("index request", zap.String("url", doc.URL), zap.String("title", doc.Title))

	result, err := s.indexer.IndexDocument(r.Context(), doc)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("url", doc.URL), zap.Error(err))
		switch {
		case errors.Is(err, embedding.ErrUnavailable):
			s.respondError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
		case errors.Is(err, indexer.ErrDocumentDegraded):
			s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":    err.Error(),
				"degraded": true,
			})
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if result.ChunksIndexed > 0 {
		if err := s.persist.NotifyWrite(); err != nil {
			s.logger.Warn("post-index save failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.search(w, r, req.Query, req.TopK)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		topK = n
	}
	s.search(w, r, query, topK)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, query string, topK int) {
	s.logger.Debug("search request", zap.String("query", query), zap.Int("top_k", topK))
	response, err := s.service.Search(r.Context(), query, topK)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			s.respondError(w, http.StatusBadRequest, "query is required")
		case errors.Is(err, vector.ErrInvalidTopK):
			s.respondError(w, http.StatusBadRequest, "top_k must not be negative")
		case errors.Is(err, embedding.ErrUnavailable):
			s.respondError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
		default:
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"index_size": s.index.Size(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pages, err := s.storage.CountPages(ctx)
	if err != nil {
		s.logger.Error("stats: count pages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunks, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("stats: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := &models.StatsResponse{
		IndexSize: s.index.Size(),
		Documents: pages,
		Chunks:    chunks,
		Config: &models.StatsConfig{
			Dimensions:   s.index.Dimensions(),
			Metric:       "l2",
			ChunkSize:    s.config.Indexing.ChunkSize,
			ChunkOverlap: s.config.Indexing.ChunkOverlap,
			StateDir:     s.config.Storage.StateDir,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.StateDir); err == nil {
		resp.DiskUsageBytes = &diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
