// Package agent runs the document pipeline: extract text, match the client, select a
// template, extract the remaining fields and generate the filled document.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/extraction"
	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/matching"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/render"
	"github.com/hyperjump/taxdesk/internal/selection"
	"github.com/hyperjump/taxdesk/internal/storage"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, filename string, content []byte) (string, error)
}

// Repository is the persistence the pipeline reads from and writes to.
type Repository interface {
	ListClients(ctx context.Context) ([]*models.Client, error)
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	GetTemplate(ctx context.Context, id int64) (*models.Template, error)
	GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error)
	DocumentsForWorkOrder(ctx context.Context, workOrderID int64) ([]*models.Document, error)
	FirstTaxAdvisor(ctx context.Context) (*models.TaxAdvisor, error)
	WithinTx(ctx context.Context, fn func(w storage.Writer) error) error
}

// Renderer generates the filled document.
type Renderer interface {
	Render(ctx context.Context, tpl *models.Template, values map[string]any) (*render.Artifact, error)
}

// FileStore keeps uploaded files.
type FileStore interface {
	Save(original string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// PDFConverter converts office documents to PDF before they are stored.
type PDFConverter interface {
	ConvertToPDF(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// Indexer receives documents after a workflow is committed.
type Indexer interface {
	IndexAll(ctx context.Context, docs []*models.Document) error
}

// Deps are the collaborators of an Agent. Renderer, Converter and Archive are optional.
type Deps struct {
	LLM       llm.Completer
	Extractor *extraction.Extractor
	Matcher   *matching.Matcher
	Selector  *selection.Selector
	Text      TextExtractor
	Repo      Repository
	Files     FileStore
	Renderer  Renderer
	Converter PDFConverter
	Archive   Indexer
}

// Upload is one input document.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Preferences are per-call user settings.
type Preferences struct {
	PreferredTextModel string `json:"preferred_text_model,omitempty"`
}

// Agent sequences the pipeline stages. It holds no per-run state and is safe for concurrent use.
type Agent struct {
	deps   Deps
	cfg    config.AgentConfig
	logger *zap.Logger
	now    func() time.Time
}

// New returns an Agent.
func New(deps Deps, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	logger = utils.OrNop(logger)
	if deps.Matcher == nil {
		deps.Matcher = matching.NewMatcher(matching.DefaultWeights())
	}
	if deps.Extractor == nil {
		deps.Extractor = extraction.New(deps.LLM, extraction.Limits{
			MaxChars:         cfg.MaxExtractChars,
			SummaryChars:     cfg.SummaryChars,
			SummaryMaxLength: cfg.SummaryMaxLength,
		}, logger)
	}
	if deps.Selector == nil {
		deps.Selector = selection.New(deps.LLM, cfg.SelectorTextChars, cfg.MaxKeyFields, logger)
	}
	return &Agent{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// aiAvailable runs the availability probe. Callers invoke it once per run.
func (a *Agent) aiAvailable(ctx context.Context) bool {
	if a.deps.LLM == nil {
		return false
	}
	ok := a.deps.LLM.Available(ctx)
	if !ok {
		a.logger.Warn("AI service not available, degrading to deterministic stages")
	}
	return ok
}

func (p Preferences) options() []extraction.Option {
	if p.PreferredTextModel == "" {
		return nil
	}
	return []extraction.Option{extraction.WithModel(p.PreferredTextModel)}
}
