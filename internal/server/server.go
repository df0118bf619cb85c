// Package server provides the HTTP API for taxdesk.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/archive"
	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Pipeline is the document pipeline behind the /ai-agent routes.
type Pipeline interface {
	Process(ctx context.Context, uploads []agent.Upload, workOrderID *int64, prefs agent.Preferences) agent.ProcessResult
	PreviewMatch(ctx context.Context, uploads []agent.Upload, prefs agent.Preferences) agent.MatchPreview
	SuggestTemplate(ctx context.Context, uploads []agent.Upload, prefs agent.Preferences) agent.TemplateSuggestion
	ExtractAllFields(ctx context.Context, uploads []agent.Upload, templateID int64, prefs agent.Preferences) agent.FieldsResult
	ExtractWorkOrderFields(ctx context.Context, workOrderID, templateID int64, prefs agent.Preferences) agent.FieldsResult
	CreateWorkflow(ctx context.Context, req agent.WorkflowRequest) agent.WorkflowResult
}

// Store is the record persistence behind the CRUD routes.
type Store interface {
	ListClients(ctx context.Context) ([]*models.Client, error)
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	CreateClient(ctx context.Context, c *models.Client) error
	DeleteClient(ctx context.Context, id int64) error
	CountClients(ctx context.Context) (int64, error)
	ListTaxAdvisors(ctx context.Context) ([]*models.TaxAdvisor, error)
	GetTaxAdvisor(ctx context.Context, id int64) (*models.TaxAdvisor, error)
	CreateTaxAdvisor(ctx context.Context, a *models.TaxAdvisor) error
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	GetTemplate(ctx context.Context, id int64) (*models.Template, error)
	CreateTemplate(ctx context.Context, t *models.Template) error
	ListWorkOrders(ctx context.Context, offset, limit int) ([]*models.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error)
	DocumentsForWorkOrder(ctx context.Context, workOrderID int64) ([]*models.Document, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Files stores uploaded templates.
type Files interface {
	Save(original string, data []byte) (string, error)
	Remove(name string) error
	Usage() (int64, error)
}

// Searcher is the document archive.
type Searcher interface {
	Search(ctx context.Context, query string, opts archive.SearchOptions) ([]archive.Hit, error)
	Count() (uint64, error)
}

// Deps are the collaborators of a Server. Archive and LLM are optional.
type Deps struct {
	Pipeline Pipeline
	Store    Store
	Files    Files
	Archive  Searcher
	LLM      llm.Inspector
}

// Server is the HTTP server for the taxdesk API.
type Server struct {
	deps    Deps
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
	version string
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, version string, logger *zap.Logger) *Server {
	return &Server{
		deps:    deps,
		config:  cfg,
		logger:  utils.OrNop(logger),
		version: version,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/llm/status", s.handleLLMStatus)
		r.Get("/llm/models", s.handleLLMModels)

		r.Get("/clients", s.handleListClients)
		r.Post("/clients", s.handleCreateClient)
		r.Get("/clients/{id}", s.handleGetClient)
		r.Delete("/clients/{id}", s.handleDeleteClient)

		r.Get("/tax-advisors", s.handleListTaxAdvisors)
		r.Post("/tax-advisors", s.handleCreateTaxAdvisor)
		r.Get("/tax-advisors/{id}", s.handleGetTaxAdvisor)

		r.Get("/templates", s.handleListTemplates)
		r.Post("/templates", s.handleCreateTemplate)
		r.Get("/templates/{id}", s.handleGetTemplate)

		r.Get("/work-orders", s.handleListWorkOrders)
		r.Get("/work-orders/{id}", s.handleGetWorkOrder)
		r.Get("/work-orders/{id}/documents", s.handleWorkOrderDocuments)
		r.Post("/work-orders/{id}/extract-fields", s.handleExtractWorkOrderFields)

		r.Get("/documents/search", s.handleSearchDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)

		r.Route("/ai-agent", func(r chi.Router) {
			r.Post("/process-documents", s.handleProcessDocuments)
			r.Post("/create-workflow", s.handleCreateWorkflow)
			r.Post("/analyze-client-match", s.handleAnalyzeClientMatch)
			r.Post("/suggest-template", s.handleSuggestTemplate)
			r.Post("/extract-all-fields", s.handleExtractAllFields)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
