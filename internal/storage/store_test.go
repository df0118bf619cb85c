package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, s *Store) (*models.Client, *models.TaxAdvisor) {
	t.Helper()
	ctx := context.Background()
	client := &models.Client{Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann",
		TaxNumber: "12/345/67890", BirthDate: "1980-05-01"}
	require.NoError(t, s.CreateClient(ctx, client))
	advisor := &models.TaxAdvisor{Name: "Dr. Weber", Email: "weber@example.com"}
	require.NoError(t, s.CreateTaxAdvisor(ctx, advisor))
	return client, advisor
}

func TestOpen_unsupportedDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "oracle"}, nil)
	assert.Error(t, err, "unsupported driver")
	_, err = Open(config.StorageConfig{Driver: "postgres"}, nil)
	assert.Error(t, err, "postgres without url")
}

func TestStore_Clients(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client, _ := seed(t, s)
	require.NotZero(t, client.ID)
	require.False(t, client.CreatedAt.IsZero(), "CreateClient must set timestamps")

	company := &models.Client{Type: models.ClientCompany, CompanyName: "Muster GmbH", ContactPhone: "089 123456"}
	require.NoError(t, s.CreateClient(ctx, company))
	assert.Error(t, s.CreateClient(ctx, &models.Client{Type: models.ClientCompany}), "company without name")

	got, err := s.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mustermann", got.LastName)
	assert.Equal(t, "12/345/67890", got.TaxNumber)
	assert.Equal(t, "1980-05-01", got.BirthDate)

	list, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, client.ID, list[0].ID)
	assert.Equal(t, "Muster GmbH", list[1].CompanyName)
	n, err := s.CountClients(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.DeleteClient(ctx, company.ID))
	_, err = s.GetClient(ctx, company.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteClient(ctx, company.ID), ErrNotFound)
}

func TestStore_FirstTaxAdvisor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.FirstTaxAdvisor(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	_, first := seed(t, s)
	require.NoError(t, s.CreateTaxAdvisor(ctx, &models.TaxAdvisor{Name: "B", Email: "b@example.com"}))
	got, err := s.FirstTaxAdvisor(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	all, err := s.ListTaxAdvisors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Templates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := &models.Template{
		Title:    "Steuererklärung",
		FilePath: "abc.docx",
		Placeholders: []models.Placeholder{
			{Name: "client_name", Type: models.FieldText, IsClientField: true},
			{Name: "betrag", Type: models.FieldNumber, Required: true},
			{Name: "art", Type: models.FieldSelect, Options: []string{"ESt", "USt"}},
		},
	}
	require.NoError(t, s.CreateTemplate(ctx, tpl))
	require.NoError(t, s.CreateTemplate(ctx, &models.Template{Title: "Leer"}))

	bad := &models.Template{Title: "Bad", Placeholders: []models.Placeholder{{Name: "x", Type: models.FieldSelect}}}
	assert.Error(t, s.CreateTemplate(ctx, bad), "select placeholder without options")

	got, err := s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Placeholders, 3)
	assert.True(t, got.Placeholders[0].IsClientField)
	assert.Equal(t, []string{"ESt", "USt"}, got.Placeholders[2].Options)

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, tpl.ID, list[0].ID)
	assert.Empty(t, list[1].Placeholders)

	_, err = s.GetTemplate(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WithinTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client, advisor := seed(t, s)

	var orderID int64
	err := s.WithinTx(ctx, func(w Writer) error {
		order := &models.WorkOrder{Title: "Belege 2024", ClientID: client.ID, TaxAdvisorID: advisor.ID,
			Status: models.StatusCompleted}
		if err := w.CreateWorkOrder(ctx, order); err != nil {
			return err
		}
		orderID = order.ID
		for _, title := range []string{"a.pdf", "b.pdf"} {
			doc := &models.Document{Title: title, Content: "text " + title, WorkOrderID: models.Int64Ptr(order.ID),
				ClientID: models.Int64Ptr(client.ID), TaxAdvisorID: models.Int64Ptr(advisor.ID)}
			if err := w.CreateDocument(ctx, doc); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	order, err := s.GetWorkOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, order.Status)
	assert.Equal(t, models.PriorityMedium, order.Priority)
	assert.Nil(t, order.TemplateID)

	docs, err := s.DocumentsForWorkOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Title)
	assert.Equal(t, orderID, *docs[1].WorkOrderID)

	doc, err := s.GetDocument(ctx, docs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "text b.pdf", doc.Content)
}

func TestStore_WithinTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client, advisor := seed(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(w Writer) error {
		order := &models.WorkOrder{Title: "rollback", ClientID: client.ID, TaxAdvisorID: advisor.ID}
		if err := w.CreateWorkOrder(ctx, order); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	orders, err := s.ListWorkOrders(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, orders, "work order must be rolled back")
	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &Store{dialect: dialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
