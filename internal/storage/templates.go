package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hyperjump/taxdesk/internal/models"
)

const templateColumns = `id, title, description, document_type, file_path, placeholders, created_at, updated_at`

func scanTemplate(row scanner) (*models.Template, error) {
	var t models.Template
	var raw string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DocumentType, &t.FilePath, &raw,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	ps, err := models.ParsePlaceholders([]byte(raw))
	if err != nil {
		return nil, eris.Wrapf(err, "template %d has invalid placeholders", t.ID)
	}
	t.Placeholders = ps
	return &t, nil
}

// CreateTemplate inserts a template. Placeholders are validated against the placeholder schema.
func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	if strings.TrimSpace(t.Title) == "" {
		return eris.New("invalid template: title is required")
	}
	raw, err := models.MarshalPlaceholders(t.Placeholders)
	if err != nil {
		return eris.Wrap(err, "invalid template")
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	id, err := s.insert(ctx,
		`INSERT INTO templates (title, description, document_type, file_path, placeholders, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.DocumentType, t.FilePath, string(raw), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "insert template")
	}
	t.ID = id
	return nil
}

// GetTemplate returns a template by ID.
func (s *Store) GetTemplate(ctx context.Context, id int64) (*models.Template, error) {
	t, err := scanTemplate(s.queryRow(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "template %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "get template")
	}
	return t, nil
}

// ListTemplates returns every template ordered by ID. The order is the catalog order used for
// template selection.
func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	rows, err := s.query(ctx, "SELECT "+templateColumns+" FROM templates ORDER BY id")
	if err != nil {
		return nil, eris.Wrap(err, "list templates")
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template. Work orders referencing it keep a NULL template_id.
func (s *Store) DeleteTemplate(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "templates", id)
}
