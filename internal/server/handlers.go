package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"go.uber.org/zap"
)

type askRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain,omitempty"`
}

type askResponse struct {
	Answer *models.Answer `json:"answer"`
	Domain string         `json:"domain"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required", "bad_request")
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.String("domain_hint", req.Domain))
	answer, domain, err := s.orchestrator.Answer(r.Context(), req.Query, req.Domain)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{Answer: answer, Domain: domain})
}

type ingestDocumentsRequest struct {
	Documents []models.DocumentInput `json:"documents"`
}

func (s *Server) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	var req ingestDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents is required", "bad_request")
		return
	}
	docs := make([]models.Document, len(req.Documents))
	for i, in := range req.Documents {
		docs[i] = models.Document{
			SourceID: in.SourceID,
			Text:     in.Text,
			Metadata: in.Metadata,
		}
	}
	s.logger.Debug("ingest documents request", zap.String("domain", domain), zap.Int("documents", len(docs)))
	report, err := s.pipeline.Ingest(r.Context(), domain, docs)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

type ingestPathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIngestPath(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	var req ingestPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required", "bad_request")
		return
	}
	s.logger.Debug("ingest path request", zap.String("domain", domain), zap.String("path", req.Path))
	report, err := s.pipeline.IngestPath(r.Context(), domain, req.Path)
	if err != nil {
		s.logger.Error("ingest path failed", zap.Error(err))
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

type domainInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Documents   int64  `json:"documents"`
	Chunks      int64  `json:"chunks"`
	Vectors     int    `json:"vectors"`
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	infos := make([]domainInfo, 0, s.registry.Len())
	for _, name := range s.registry.Names() {
		d, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		info := domainInfo{Name: d.Name, Description: d.Description, Vectors: d.Index.Size()}
		if n, err := d.Store.CountDocuments(ctx); err == nil {
			info.Documents = n
		}
		if n, err := d.Store.CountChunks(ctx); err == nil {
			info.Chunks = n
		}
		infos = append(infos, info)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"domains": infos})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var docs, chunks int64
	vectors := 0
	for _, name := range s.registry.Names() {
		d, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		if n, err := d.Store.CountDocuments(ctx); err == nil {
			docs += n
		}
		if n, err := d.Store.CountChunks(ctx); err == nil {
			chunks += n
		}
		vectors += d.Index.Size()
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"domains":   s.registry.Len(),
		"documents": docs,
		"chunks":    chunks,
		"vectors":   vectors,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForKind maps error kinds to HTTP status codes.
var statusForKind = map[string]int{
	"invalid_domain":         http.StatusBadRequest,
	"unknown_domain":         http.StatusNotFound,
	"no_domains_configured":  http.StatusServiceUnavailable,
	"embedding_failure":      http.StatusBadGateway,
	"generation_failure":     http.StatusBadGateway,
	"generation_unavailable": http.StatusServiceUnavailable,
	"timeout":                http.StatusGatewayTimeout,
}

// respondErrorFor maps err to a status code via its kind.
func (s *Server) respondErrorFor(w http.ResponseWriter, err error) {
	kind := models.ErrorKind(err)
	status, ok := statusForKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	s.respondError(w, status, err.Error(), kind)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, kind string) {
	s.respondJSON(w, status, map[string]string{"error": message, "kind": kind})
}
