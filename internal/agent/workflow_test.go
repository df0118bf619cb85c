package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/llm/llmtest"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/render"
)

func TestCreateWorkflow(t *testing.T) {
	f := newFixture(t, scriptedLLM())
	res := f.agent.CreateWorkflow(context.Background(), WorkflowRequest{
		Uploads:     uploads(),
		Name:        "Einspruch 2024",
		Description: "automatisch erstellt",
	})
	require.True(t, res.Success, res.Error)

	require.NotNil(t, res.WorkOrder)
	assert.Equal(t, models.StatusCompleted, res.WorkOrder.Status)
	assert.Equal(t, models.PriorityMedium, res.WorkOrder.Priority)
	assert.Equal(t, int64(2), res.WorkOrder.ClientID)
	assert.Equal(t, int64(5), res.WorkOrder.TaxAdvisorID)
	require.NotNil(t, res.WorkOrder.TemplateID)
	assert.Equal(t, int64(11), *res.WorkOrder.TemplateID)

	// both uploads are stored, including the one without text
	assert.Equal(t, 2, res.SavedDocuments)
	require.Len(t, f.repo.documents, 2)
	assert.Len(t, f.files.files, 2)
	doc := f.repo.documents[1]
	assert.Equal(t, "bescheid.txt", doc.Title)
	assert.Equal(t, "processed", doc.Status)
	assert.Contains(t, doc.Content, "Steuernummer")
	assert.Equal(t, res.WorkOrder.ID, *doc.WorkOrderID)

	assert.Len(t, f.index.docs, 2)
	assert.Equal(t, res.WorkOrder.ID, *res.Processing.Metadata.WorkOrderID)
	assert.Equal(t, "workflow created with 2 documents", res.Message)
}

func TestCreateWorkflow_convertsToPDF(t *testing.T) {
	f := newFixture(t, scriptedLLM())
	f.agent.deps.Converter = fakeConverter{}
	res := f.agent.CreateWorkflow(context.Background(), WorkflowRequest{Uploads: uploads(), Name: "PDF"})
	require.True(t, res.Success, res.Error)
	for _, d := range res.Documents {
		assert.Equal(t, render.MimePDF, d.DocumentType)
	}
	assert.Equal(t, "bescheid.pdf", res.Documents[1].Title)
}

func TestCreateWorkflow_convertsOutsideTransaction(t *testing.T) {
	f := newFixture(t, scriptedLLM())
	conv := &recordingConverter{repo: f.repo}
	f.agent.deps.Converter = conv
	res := f.agent.CreateWorkflow(context.Background(), WorkflowRequest{Uploads: uploads(), Name: "PDF"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, conv.calls)
	assert.Zero(t, conv.duringTx)
}

func TestCreateWorkflow_failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		req   WorkflowRequest
		kind  ErrorKind
	}{
		{
			name: "missing name",
			req:  WorkflowRequest{Uploads: uploads()},
			kind: KindInput,
		},
		{
			name:  "no clients",
			setup: func(f *fixture) { f.repo.clients = nil },
			req:   WorkflowRequest{Uploads: uploads(), Name: "x"},
			kind:  KindNoClientMatch,
		},
		{
			name:  "zero score match",
			setup: func(f *fixture) { f.repo.clients = f.repo.clients[:1] },
			req:   WorkflowRequest{Uploads: uploads(), Name: "x"},
			kind:  KindNoClientMatch,
		},
		{
			name:  "no tax advisor",
			setup: func(f *fixture) { f.repo.advisors = nil },
			req:   WorkflowRequest{Uploads: uploads(), Name: "x"},
			kind:  KindNotFound,
		},
		{
			name: "no readable content",
			req:  WorkflowRequest{Uploads: []Upload{{Filename: "leer.pdf"}}, Name: "x"},
			kind: KindNoReadableContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, scriptedLLM())
			if tt.setup != nil {
				tt.setup(f)
			}
			res := f.agent.CreateWorkflow(context.Background(), tt.req)
			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.ErrorKind, res.Error)
			assert.Empty(t, f.repo.orders)
			assert.Empty(t, f.files.files)
		})
	}
}

func TestCreateWorkflow_AIUnavailableHasNoMatch(t *testing.T) {
	f := newFixture(t, &llmtest.Fake{Down: true})
	res := f.agent.CreateWorkflow(context.Background(), WorkflowRequest{Uploads: uploads(), Name: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, KindNoClientMatch, res.ErrorKind)
	require.NotNil(t, res.Processing)
	assert.True(t, res.Processing.Success)
}

func TestCreateWorkflow_rollbackRemovesFiles(t *testing.T) {
	f := newFixture(t, scriptedLLM())
	f.repo.failDocN = 2
	res := f.agent.CreateWorkflow(context.Background(), WorkflowRequest{Uploads: uploads(), Name: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, KindPersistence, res.ErrorKind)
	assert.Contains(t, res.Error, "disk full")
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.repo.documents)
	assert.Empty(t, f.files.files, "files written during the failed transaction must be removed")
	assert.Empty(t, f.index.docs)
}
