package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/archive"
)

const defaultMaxUploadMB = 32

func (s *Server) maxUploadBytes() int64 {
	mb := s.config.Server.MaxUploadMB
	if mb <= 0 {
		mb = defaultMaxUploadMB
	}
	return int64(mb) << 20
}

// parseMultipart parses a multipart form whose whole body is capped at server.max_upload_mb.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return r.ParseMultipartForm(limit)
}

// respondFormError answers a failed multipart parse: 413 when the body exceeded the limit.
func (s *Server) respondFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	s.respondError(w, http.StatusBadRequest, "invalid multipart form")
}

// readUploads parses the multipart form and returns the files sent as "documents".
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]agent.Upload, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return nil, err
	}
	var uploads []agent.Upload
	for _, fh := range r.MultipartForm.File["documents"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, agent.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     data,
		})
	}
	return uploads, nil
}

// preferences decodes the optional user_preferences field. Invalid JSON falls back to defaults.
func (s *Server) preferences(raw string) agent.Preferences {
	var prefs agent.Preferences
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return prefs
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		s.logger.Warn("Ignoring invalid user preferences", zap.Error(err))
		return agent.Preferences{}
	}
	return prefs
}

func formInt64(r *http.Request, key string) (int64, bool) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleProcessDocuments(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		s.respondFormError(w, err)
		return
	}
	var workOrderID *int64
	if id, ok := formInt64(r, "work_order_id"); ok {
		workOrderID = &id
	}
	res := s.deps.Pipeline.Process(r.Context(), uploads, workOrderID, s.preferences(r.FormValue("user_preferences")))
	s.respondOutcome(w, res.Outcome, res)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		s.respondFormError(w, err)
		return
	}
	res := s.deps.Pipeline.CreateWorkflow(r.Context(), agent.WorkflowRequest{
		Uploads:     uploads,
		Name:        r.FormValue("workflow_name"),
		Description: r.FormValue("workflow_description"),
		Preferences: s.preferences(r.FormValue("user_preferences")),
	})
	if res.Success {
		s.respondJSON(w, http.StatusCreated, res)
		return
	}
	s.respondOutcome(w, res.Outcome, res)
}

func (s *Server) handleAnalyzeClientMatch(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		s.respondFormError(w, err)
		return
	}
	res := s.deps.Pipeline.PreviewMatch(r.Context(), uploads, s.preferences(r.FormValue("user_preferences")))
	s.respondOutcome(w, res.Outcome, res)
}

func (s *Server) handleSuggestTemplate(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		s.respondFormError(w, err)
		return
	}
	res := s.deps.Pipeline.SuggestTemplate(r.Context(), uploads, s.preferences(r.FormValue("user_preferences")))
	s.respondOutcome(w, res.Outcome, res)
}

func (s *Server) handleExtractAllFields(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.readUploads(w, r)
	if err != nil {
		s.respondFormError(w, err)
		return
	}
	templateID, ok := formInt64(r, "template_id")
	if !ok {
		s.respondError(w, http.StatusBadRequest, "template_id is required")
		return
	}
	res := s.deps.Pipeline.ExtractAllFields(r.Context(), uploads, templateID, s.preferences(r.FormValue("user_preferences")))
	s.respondOutcome(w, res.Outcome, res)
}

type extractFieldsRequest struct {
	TemplateID          int64  `json:"template_id"`
	UserModelPreference string `json:"user_model_preference"`
}

func (s *Server) handleExtractWorkOrderFields(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid work order id")
		return
	}
	var req extractFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prefs := agent.Preferences{PreferredTextModel: req.UserModelPreference}
	res := s.deps.Pipeline.ExtractWorkOrderFields(r.Context(), id, req.TemplateID, prefs)
	s.respondOutcome(w, res.Outcome, res)
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document archive is not configured")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	opts := archive.SearchOptions{}
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	opts.Fuzzy, _ = strconv.ParseBool(q.Get("fuzzy"))
	opts.WorkOrderID, _ = strconv.ParseInt(q.Get("work_order_id"), 10, 64)

	hits, err := s.deps.Archive.Search(r.Context(), query, opts)
	if err != nil {
		s.logger.Error("Archive search failed", zap.String("query", query), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []archive.Hit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query, "results": hits, "total": len(hits)})
}
