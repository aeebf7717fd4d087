package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document statuses.
const (
	StatusQueued    = "queued"
	StatusIngesting = "ingesting"
	StatusDone      = "done"
	StatusFailed    = "failed"
)

// Document is a PDF known to the catalog and the outcome of its ingestion.
type Document struct {
	ID           string    `json:"id"`
	PDFName      string    `json:"pdf_name"`
	Path         string    `json:"path"`
	Status       string    `json:"status"`
	TextChunks   int       `json:"text_chunks"`
	ImageRecords int       `json:"image_records"`
	Skipped      int       `json:"skipped"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
