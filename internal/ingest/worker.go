package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/pdfrag/internal/extract"
	"github.com/kalambet/pdfrag/internal/pipeline"
	"github.com/kalambet/pdfrag/internal/storage"
)

// JobType is the job queue type of PDF ingestion jobs.
const JobType = "ingest_pdf"

// JobStore abstracts the job queue and catalog operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	UpdateDocument(d storage.Document) error
}

// DocumentIngester stores one PDF in the vector index.
type DocumentIngester interface {
	Ingest(ctx context.Context, path string) (pipeline.IngestReport, error)
}

type ingestPayload struct {
	DocumentID string `json:"document_id"`
}

// NewJob builds a queued catalog entry for the PDF at path and the job that
// ingests it. Ingestion is never retried.
func NewJob(path string) (storage.Document, storage.Job, error) {
	doc := storage.Document{
		ID:        uuid.NewString(),
		PDFName:   extract.DocumentName(path),
		Path:      path,
		Status:    storage.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(ingestPayload{DocumentID: doc.ID})
	if err != nil {
		return storage.Document{}, storage.Job{}, fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobType,
		PayloadJSON: string(payload),
	}
	return doc, job, nil
}

// Worker processes ingest_pdf jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	ingester DocumentIngester
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, ingester DocumentIngester, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		ingester: ingester,
		poll:     pollInterval,
		logger:   logger,
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single ingest_pdf job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload ingestPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	doc.Status = storage.StatusIngesting
	if err := w.store.UpdateDocument(doc); err != nil {
		return fmt.Errorf("marking document %s: %w", doc.ID, err)
	}

	report, ingestErr := w.ingester.Ingest(ctx, doc.Path)
	doc.TextChunks = report.TextChunks
	doc.ImageRecords = report.ImageRecords
	doc.Skipped = report.Skipped
	doc.Status = storage.StatusDone
	if ingestErr != nil {
		doc.Status = storage.StatusFailed
		doc.Error = ingestErr.Error()
	}
	if err := w.store.UpdateDocument(doc); err != nil {
		return fmt.Errorf("recording result for %s: %w", doc.ID, err)
	}
	if ingestErr != nil {
		return fmt.Errorf("ingesting %s: %w", doc.Path, ingestErr)
	}

	w.logger.Info("ingested document", "document_id", doc.ID, "pdf", doc.PDFName, "text_chunks", report.TextChunks, "image_records", report.ImageRecords)
	return nil
}
