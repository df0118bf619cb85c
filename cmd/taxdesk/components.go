package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/archive"
	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/extract"
	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/matching"
	"github.com/hyperjump/taxdesk/internal/render"
	"github.com/hyperjump/taxdesk/internal/storage"
)

// Components holds the initialized services.
type Components struct {
	LLM     llm.Client
	Store   *storage.Store
	Files   *storage.FileStore
	Archive *archive.Archive
	Agent   *agent.Agent
}

// Close releases the database and the archive index.
func (c *Components) Close() {
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{LLM: client, Store: store}

	c.Files, err = storage.NewFileStore(cfg.Storage.UploadDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize upload dir: %w", err)
	}

	if cfg.Storage.ArchiveIndexPath != "" {
		c.Archive, err = archive.Open(cfg.Storage.ArchiveIndexPath, logger)
	} else {
		c.Archive, err = archive.NewMemOnly(logger)
	}
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	var converter *render.Converter
	if cfg.Render.ConvertToPDF {
		converter = render.NewConverter(cfg.Render.SofficePath)
		if converter == nil {
			logger.Warn("PDF conversion enabled but soffice not found", zap.String("path", cfg.Render.SofficePath))
		}
	}

	deps := agent.Deps{
		LLM:      client,
		Matcher:  matching.NewMatcher(matching.WeightsFromConfig(cfg.Matching)),
		Text:     extract.NewExtractor(cfg.Extract.PdfToTextPath, logger),
		Repo:     store,
		Files:    c.Files,
		Renderer: render.NewRenderer(c.Files, converter, logger),
		Archive:  c.Archive,
	}
	// A nil *Converter must not become a non-nil interface.
	if converter != nil {
		deps.Converter = converter
	}

	c.Agent = agent.New(deps, cfg.Agent, logger)
	logger.Info("components initialized",
		zap.String("db_driver", store.Driver()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("pdf_conversion", converter != nil))
	return c, nil
}
