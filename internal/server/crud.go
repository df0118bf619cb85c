package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/models"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.deps.Store.ListClients(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"clients": clients, "total": len(clients)})
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	c, err := s.deps.Store.GetClient(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var c models.Client
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.ID = 0
	if err := c.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.CreateClient(r.Context(), &c); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &c)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid client id")
		return
	}
	if err := s.deps.Store.DeleteClient(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTaxAdvisors(w http.ResponseWriter, r *http.Request) {
	advisors, err := s.deps.Store.ListTaxAdvisors(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"tax_advisors": advisors, "total": len(advisors)})
}

func (s *Server) handleGetTaxAdvisor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid tax advisor id")
		return
	}
	a, err := s.deps.Store.GetTaxAdvisor(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateTaxAdvisor(w http.ResponseWriter, r *http.Request) {
	var a models.TaxAdvisor
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.ID = 0
	if err := a.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.CreateTaxAdvisor(r.Context(), &a); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &a)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.Store.ListTemplates(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"templates": templates, "total": len(templates)})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	t, err := s.deps.Store.GetTemplate(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

// handleCreateTemplate accepts a multipart upload with a DOCX or XLSX file and its placeholder schema.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Files == nil {
		s.respondError(w, http.StatusInternalServerError, "file storage is not configured")
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.respondFormError(w, err)
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".docx" && ext != ".xlsx" {
		s.respondError(w, http.StatusBadRequest, "template must be a .docx or .xlsx file")
		return
	}

	placeholders := []models.Placeholder{}
	if raw := strings.TrimSpace(r.FormValue("placeholders")); raw != "" {
		placeholders, err = models.ParsePlaceholders([]byte(raw))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	name, err := s.deps.Files.Save(header.Filename, data)
	if err != nil {
		s.logger.Error("Saving template file failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	t := &models.Template{
		Title:        title,
		Description:  r.FormValue("description"),
		DocumentType: strings.TrimPrefix(ext, "."),
		FilePath:     name,
		Placeholders: placeholders,
	}
	if err := s.deps.Store.CreateTemplate(r.Context(), t); err != nil {
		if rmErr := s.deps.Files.Remove(name); rmErr != nil {
			s.logger.Warn("Removing orphaned template file failed", zap.String("file", name), zap.Error(rmErr))
		}
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	orders, err := s.deps.Store.ListWorkOrders(r.Context(), offset, limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"work_orders": orders, "total": len(orders)})
}

func (s *Server) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid work order id")
		return
	}
	wo, err := s.deps.Store.GetWorkOrder(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, wo)
}

func (s *Server) handleWorkOrderDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid work order id")
		return
	}
	if _, err := s.deps.Store.GetWorkOrder(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	docs, err := s.deps.Store.DocumentsForWorkOrder(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "total": len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.deps.Store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}
