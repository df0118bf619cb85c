package agent

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/render"
	"github.com/hyperjump/taxdesk/internal/storage"
)

// Document status recorded for workflow uploads.
const documentStatusProcessed = "processed"

// WorkflowRequest is the input of CreateWorkflow.
type WorkflowRequest struct {
	Uploads     []Upload
	Name        string
	Description string
	Preferences Preferences
}

// WorkflowResult is returned by CreateWorkflow.
type WorkflowResult struct {
	Outcome
	WorkOrder      *models.WorkOrder  `json:"work_order,omitempty"`
	Documents      []*models.Document `json:"documents,omitempty"`
	SavedDocuments int                `json:"saved_documents"`
	Processing     *ProcessResult     `json:"processing_result,omitempty"`
	Message        string             `json:"message,omitempty"`
}

// CreateWorkflow runs the full pipeline and persists a completed work order for the matched
// client with one document per upload. All writes happen in one transaction; files stored
// during a failed transaction are removed.
func (a *Agent) CreateWorkflow(ctx context.Context, req WorkflowRequest) WorkflowResult {
	a.logger.Info("creating workflow", zap.String("name", req.Name))
	if strings.TrimSpace(req.Name) == "" {
		return WorkflowResult{Outcome: failure(eris.Wrap(ErrInput, "workflow_name is required"))}
	}
	if len(req.Uploads) == 0 {
		return WorkflowResult{Outcome: failure(eris.Wrap(ErrInput, "no documents provided"))}
	}
	if a.deps.Files == nil {
		return WorkflowResult{Outcome: failure(eris.Wrap(ErrPersistence, "file storage is not configured"))}
	}

	pr, c := a.process(ctx, req.Uploads, nil, req.Preferences)
	if !pr.Success {
		return WorkflowResult{Outcome: pr.Outcome, Processing: &pr}
	}

	match := pr.ClientMatch
	if match == nil || !match.Matched {
		return WorkflowResult{
			Outcome:    failure(eris.Wrap(ErrNoClientMatch, "create the client first")),
			Processing: &pr,
		}
	}

	advisor, err := a.deps.Repo.FirstTaxAdvisor(ctx)
	if err != nil {
		return WorkflowResult{Outcome: failure(lookupErr(err, "no tax advisor available")), Processing: &pr}
	}

	order := &models.WorkOrder{
		Title:        req.Name,
		Description:  req.Description,
		Status:       models.StatusCompleted,
		Priority:     models.PriorityMedium,
		ClientID:     match.Client.ID,
		TaxAdvisorID: advisor.ID,
	}
	if pr.TemplateSelection != nil && pr.TemplateSelection.Template != nil {
		order.TemplateID = models.Int64Ptr(pr.TemplateSelection.Template.ID)
	}

	files := make([]preparedFile, len(c.docs))
	for i, td := range c.docs {
		files[i] = a.prepareFile(ctx, td.upload)
		files[i].text = td.text
	}

	var stored []string
	var docs []*models.Document
	err = a.deps.Repo.WithinTx(ctx, func(w storage.Writer) error {
		if err := w.CreateWorkOrder(ctx, order); err != nil {
			return err
		}
		for _, pf := range files {
			name, err := a.deps.Files.Save(pf.filename, pf.data)
			if err != nil {
				return err
			}
			stored = append(stored, name)

			doc := &models.Document{
				Title:        pf.filename,
				Content:      pf.text,
				DocumentType: pf.mimeType,
				Status:       documentStatusProcessed,
				FilePath:     name,
				ClientID:     models.Int64Ptr(match.Client.ID),
				TaxAdvisorID: models.Int64Ptr(advisor.ID),
				WorkOrderID:  models.Int64Ptr(order.ID),
			}
			if err := w.CreateDocument(ctx, doc); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		for _, name := range stored {
			if rmErr := a.deps.Files.Remove(name); rmErr != nil {
				a.logger.Warn("failed to remove stored file after rollback", zap.String("file", name), zap.Error(rmErr))
			}
		}
		a.logger.Error("workflow creation rolled back", zap.Error(err))
		return WorkflowResult{
			Outcome:    failure(eris.Wrapf(ErrPersistence, "workflow creation failed: %v", err)),
			Processing: &pr,
		}
	}

	if a.deps.Archive != nil {
		if err := a.deps.Archive.IndexAll(ctx, docs); err != nil {
			a.logger.Warn("archive indexing failed", zap.Int64("work_order_id", order.ID), zap.Error(err))
		}
	}
	pr.Metadata.WorkOrderID = models.Int64Ptr(order.ID)

	a.logger.Info("workflow created", zap.Int64("work_order_id", order.ID), zap.Int("documents", len(docs)))
	return WorkflowResult{
		Outcome:        ok(),
		WorkOrder:      order,
		Documents:      docs,
		SavedDocuments: len(docs),
		Processing:     &pr,
		Message:        fmt.Sprintf("workflow created with %d documents", len(docs)),
	}
}

// preparedFile is an upload ready to be stored.
type preparedFile struct {
	filename string
	mimeType string
	data     []byte
	text     string
}

// prepareFile converts an upload to PDF when a converter is configured. Conversion failures
// keep the original file. It runs before the workflow transaction is opened.
func (a *Agent) prepareFile(ctx context.Context, u *Upload) preparedFile {
	pf := preparedFile{filename: u.Filename, mimeType: u.ContentType, data: u.Content}
	if pf.mimeType == "" {
		pf.mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(pf.filename)))
	}
	if pf.mimeType == "" {
		pf.mimeType = "application/octet-stream"
	}
	if a.deps.Converter == nil {
		return pf
	}
	pdf, err := a.deps.Converter.ConvertToPDF(ctx, pf.filename, pf.data)
	if err != nil {
		a.logger.Warn("PDF conversion failed, storing original", zap.String("file", pf.filename), zap.Error(err))
		return pf
	}
	pf.filename = strings.TrimSuffix(pf.filename, filepath.Ext(pf.filename)) + ".pdf"
	pf.mimeType = render.MimePDF
	pf.data = pdf
	return pf
}
