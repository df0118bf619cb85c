package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/llm/llmtest"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/render"
	"github.com/hyperjump/taxdesk/internal/storage"
)

// fakeText returns the upload content as text. "leer*" files are empty and "kaputt*" files fail.
type fakeText struct{}

func (fakeText) ExtractFile(_ context.Context, filename string, content []byte) (string, error) {
	if strings.HasPrefix(filename, "leer") {
		return "", nil
	}
	if strings.HasPrefix(filename, "kaputt") {
		return "", errors.New("corrupt file")
	}
	return string(content), nil
}

type memRepo struct {
	mu        sync.Mutex
	clients   []*models.Client
	advisors  []*models.TaxAdvisor
	templates []*models.Template
	orders    []*models.WorkOrder
	documents []*models.Document
	failDocN  int // fail the n-th CreateDocument inside a transaction (1-based), 0 = never
	listErr   error
	inTx      bool
}

func (r *memRepo) ListClients(context.Context) ([]*models.Client, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.clients, nil
}

func (r *memRepo) GetClient(_ context.Context, id int64) (*models.Client, error) {
	for _, c := range r.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRepo) ListTemplates(context.Context) ([]*models.Template, error) {
	return r.templates, nil
}

func (r *memRepo) GetTemplate(_ context.Context, id int64) (*models.Template, error) {
	for _, t := range r.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template %d: %w", id, storage.ErrNotFound)
}

func (r *memRepo) GetWorkOrder(_ context.Context, id int64) (*models.WorkOrder, error) {
	for _, w := range r.orders {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRepo) DocumentsForWorkOrder(_ context.Context, id int64) ([]*models.Document, error) {
	var out []*models.Document
	for _, d := range r.documents {
		if d.WorkOrderID != nil && *d.WorkOrderID == id {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) FirstTaxAdvisor(context.Context) (*models.TaxAdvisor, error) {
	if len(r.advisors) == 0 {
		return nil, storage.ErrNotFound
	}
	return r.advisors[0], nil
}

type memTx struct {
	repo   *memRepo
	orders []*models.WorkOrder
	docs   []*models.Document
}

func (t *memTx) CreateWorkOrder(_ context.Context, w *models.WorkOrder) error {
	if err := w.Validate(); err != nil {
		return err
	}
	w.ID = int64(len(t.repo.orders) + len(t.orders) + 100)
	t.orders = append(t.orders, w)
	return nil
}

func (t *memTx) CreateDocument(_ context.Context, d *models.Document) error {
	if t.repo.failDocN > 0 && len(t.docs)+1 == t.repo.failDocN {
		return errors.New("disk full")
	}
	d.ID = int64(len(t.repo.documents) + len(t.docs) + 1)
	t.docs = append(t.docs, d)
	return nil
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(w storage.Writer) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inTx = true
	defer func() { r.inTx = false }()
	tx := &memTx{repo: r}
	if err := fn(tx); err != nil {
		return err
	}
	r.orders = append(r.orders, tx.orders...)
	r.documents = append(r.documents, tx.docs...)
	return nil
}

type memFiles struct {
	files map[string][]byte
	n     int
}

func newMemFiles() *memFiles {
	return &memFiles{files: map[string][]byte{}}
}

func (f *memFiles) Save(original string, data []byte) (string, error) {
	f.n++
	name := fmt.Sprintf("f%d-%s", f.n, original)
	f.files[name] = data
	return name, nil
}

func (f *memFiles) Read(name string) ([]byte, error) {
	data, ok := f.files[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (f *memFiles) Remove(name string) error {
	delete(f.files, name)
	return nil
}

type fakeRenderer struct {
	values map[string]any
	err    error
}

func (r *fakeRenderer) Render(_ context.Context, tpl *models.Template, values map[string]any) (*render.Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.values = values
	return &render.Artifact{Data: []byte("PDF"), MimeType: render.MimePDF, Filename: tpl.Title + ".pdf"}, nil
}

type fakeConverter struct{}

func (fakeConverter) ConvertToPDF(_ context.Context, _ string, data []byte) ([]byte, error) {
	return append([]byte("%PDF "), data...), nil
}

// recordingConverter notes whether a transaction was open during each conversion.
type recordingConverter struct {
	repo     *memRepo
	calls    int
	duringTx int
}

func (c *recordingConverter) ConvertToPDF(_ context.Context, _ string, data []byte) ([]byte, error) {
	c.calls++
	if c.repo.inTx {
		c.duringTx++
	}
	return data, nil
}

type fakeIndex struct {
	docs []*models.Document
}

func (i *fakeIndex) IndexAll(_ context.Context, docs []*models.Document) error {
	i.docs = append(i.docs, docs...)
	return nil
}

const (
	candidateJSON = `<think>Steuernummer gefunden</think>{"person_info": {"first_name": "Max", "last_name": "Mustermann"},
"identification": {"tax_number": "12/345/67890"}, "document_type_hints": ["Steuerbescheid"], "confidence": 0.9}`
	selectJSON  = `{"selected_template_index": 1, "confidence": 0.8, "reasoning": "Einspruch"}`
	extractJSON = `{"extracted_values": {"betrag": "ca. 1234.50 EUR", "frist": "31.12.2025", "unbekannt": "x"}, "confidence": 0.7}`
)

// scriptedLLM answers by system prompt.
func scriptedLLM() *llmtest.Fake {
	return &llmtest.Fake{Handler: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.System, "extracting client information"):
			return candidateJSON, nil
		case strings.Contains(req.System, "concise, professional summaries"):
			return "Steuerbescheid für 2024 mit Nachzahlung.", nil
		case strings.Contains(req.System, "matching documents with appropriate templates"):
			return selectJSON, nil
		default:
			return extractJSON, nil
		}
	}}
}

func fixtureRepo() *memRepo {
	return &memRepo{
		clients: []*models.Client{
			{ID: 1, Type: models.ClientCompany, CompanyName: "Beispiel AG"},
			{ID: 2, Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann",
				TaxNumber: "12/345/67890", AddressCity: "München"},
		},
		advisors: []*models.TaxAdvisor{{ID: 5, Name: "Dr. Weber", Email: "weber@example.com"}},
		templates: []*models.Template{
			{ID: 10, Title: "Vollmacht", FilePath: "vollmacht.docx", Placeholders: []models.Placeholder{
				{Name: "client_name", Type: models.FieldText, IsClientField: true},
			}},
			{ID: 11, Title: "Einspruch", FilePath: "einspruch.docx", Placeholders: []models.Placeholder{
				{Name: "client_full_name", Type: models.FieldText, IsClientField: true},
				{Name: "betrag", Type: models.FieldNumber},
				{Name: "frist", Type: models.FieldDate},
			}},
		},
	}
}
