package models

import (
	"fmt"
	"strings"
	"time"
)

// Work order status and priority values.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// WorkOrder (Arbeitsauftrag) associates a client, a tax advisor and a set of documents.
type WorkOrder struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClientID     int64      `json:"client_id"`
	TaxAdvisorID int64      `json:"tax_advisor_id"`
	TemplateID   *int64     `json:"template_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate checks required fields and fills status/priority defaults.
func (w *WorkOrder) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if w.ClientID == 0 || w.TaxAdvisorID == 0 {
		return fmt.Errorf("client_id and tax_advisor_id are required")
	}
	if w.Status == "" {
		w.Status = StatusOpen
	}
	if w.Priority == "" {
		w.Priority = PriorityMedium
	}
	return nil
}

// Document is an uploaded file together with its extracted text.
type Document struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	DocumentType string    `json:"document_type,omitempty"` // mime type
	Status       string    `json:"status,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	ClientID     *int64    `json:"client_id,omitempty"`
	TaxAdvisorID *int64    `json:"tax_advisor_id,omitempty"`
	WorkOrderID  *int64    `json:"work_order_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
