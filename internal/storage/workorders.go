package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hyperjump/taxdesk/internal/models"
)

const workOrderColumns = `id, title, description, status, priority, due_date, client_id, tax_advisor_id,
	template_id, created_at, updated_at`

func scanWorkOrder(row scanner) (*models.WorkOrder, error) {
	var w models.WorkOrder
	var due sql.NullTime
	var tpl sql.NullInt64
	if err := row.Scan(&w.ID, &w.Title, &w.Description, &w.Status, &w.Priority, &due, &w.ClientID,
		&w.TaxAdvisorID, &tpl, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		w.DueDate = &due.Time
	}
	w.TemplateID = int64Ptr(tpl)
	return &w, nil
}

// CreateWorkOrder validates and inserts a work order.
func (s *Store) CreateWorkOrder(ctx context.Context, w *models.WorkOrder) error {
	if err := w.Validate(); err != nil {
		return eris.Wrap(err, "invalid work order")
	}
	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	var due sql.NullTime
	if w.DueDate != nil {
		due = sql.NullTime{Time: *w.DueDate, Valid: true}
	}
	id, err := s.insert(ctx,
		`INSERT INTO work_orders (title, description, status, priority, due_date, client_id, tax_advisor_id,
			template_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Title, w.Description, w.Status, w.Priority, due, w.ClientID, w.TaxAdvisorID,
		nullInt64(w.TemplateID), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "insert work order")
	}
	w.ID = id
	return nil
}

// GetWorkOrder returns a work order by ID.
func (s *Store) GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error) {
	w, err := scanWorkOrder(s.queryRow(ctx, "SELECT "+workOrderColumns+" FROM work_orders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "work order %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "get work order")
	}
	return w, nil
}

// ListWorkOrders returns work orders newest first.
func (s *Store) ListWorkOrders(ctx context.Context, offset, limit int) ([]*models.WorkOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx,
		"SELECT "+workOrderColumns+" FROM work_orders ORDER BY id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "list work orders")
	}
	defer rows.Close()

	var out []*models.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan work order")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const documentColumns = `id, title, content, document_type, status, file_path, client_id, tax_advisor_id,
	work_order_id, created_at, updated_at`

func scanDocument(row scanner) (*models.Document, error) {
	var d models.Document
	var client, advisor, order sql.NullInt64
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.DocumentType, &d.Status, &d.FilePath,
		&client, &advisor, &order, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ClientID, d.TaxAdvisorID, d.WorkOrderID = int64Ptr(client), int64Ptr(advisor), int64Ptr(order)
	return &d, nil
}

// CreateDocument inserts a document record.
func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.Title == "" {
		return eris.New("invalid document: title is required")
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	id, err := s.insert(ctx,
		`INSERT INTO documents (title, content, document_type, status, file_path, client_id, tax_advisor_id,
			work_order_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Title, d.Content, d.DocumentType, d.Status, d.FilePath, nullInt64(d.ClientID),
		nullInt64(d.TaxAdvisorID), nullInt64(d.WorkOrderID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "insert document")
	}
	d.ID = id
	return nil
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	d, err := scanDocument(s.queryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "get document")
	}
	return d, nil
}

// DocumentsForWorkOrder returns a work order's documents in insertion order.
func (s *Store) DocumentsForWorkOrder(ctx context.Context, workOrderID int64) ([]*models.Document, error) {
	rows, err := s.query(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE work_order_id = ? ORDER BY id", workOrderID)
	if err != nil {
		return nil, eris.Wrap(err, "list documents")
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan document")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}
