package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/pdfrag/internal/chunk"
	"github.com/kalambet/pdfrag/internal/extract"
	"github.com/kalambet/pdfrag/internal/metrics"
	"github.com/kalambet/pdfrag/internal/retrieval"
)

// Skip reasons reported to metrics.
const (
	skipEmbed   = "embed_error"
	skipCaption = "caption_error"
)

// DocumentExtractor turns a PDF file into text and image contexts.
type DocumentExtractor interface {
	Extract(path string) (*extract.Document, error)
}

// IngestOptions tunes chunking, batching and image handling.
type IngestOptions struct {
	ChunkSize int
	BatchSize int
	// EmbedImageContent adds a vision-model caption of each image to the
	// text embedded for it.
	EmbedImageContent bool
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	PDFName      string `json:"pdf_name"`
	TextChunks   int    `json:"text_chunks"`
	ImageRecords int    `json:"image_records"`
	Skipped      int    `json:"skipped"`
}

// Ingester runs extract, chunk, embed and store for one document at a time.
type Ingester struct {
	extractor DocumentExtractor
	embedder  *retrieval.Embedder
	manager   *retrieval.Manager
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      IngestOptions
}

// NewIngester creates an Ingester. m may be nil.
func NewIngester(x DocumentExtractor, emb *retrieval.Embedder, mgr *retrieval.Manager, m *metrics.Metrics, logger *slog.Logger, opts IngestOptions) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = retrieval.DefaultBatchSize
	}
	return &Ingester{
		extractor: x,
		embedder:  emb,
		manager:   mgr,
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// Ingest stores the text chunks and images of the PDF at path in the index,
// creating the index when it does not exist. Units whose embedding fails are
// logged and skipped. Extraction and store failures abort the run.
func (in *Ingester) Ingest(ctx context.Context, path string) (IngestReport, error) {
	start := time.Now()
	defer func() { in.metrics.ObserveIngest(time.Since(start)) }()

	report := IngestReport{PDFName: extract.DocumentName(path)}
	in.logger.Info("Starting processing", "pdf", path)

	idx, err := in.manager.Initialize(ctx)
	if err != nil {
		return report, err
	}

	doc, err := in.extractor.Extract(path)
	if err != nil {
		return report, err
	}
	report.PDFName = doc.Name
	if doc.FullText == "" && len(doc.Images) == 0 {
		return report, fmt.Errorf("%w: no text or images found in %s", extract.ErrExtraction, path)
	}

	chunks := chunk.Split(doc.FullText, in.opts.ChunkSize)
	if len(chunks) == 0 {
		in.logger.Warn("No text extracted from PDF", "pdf", doc.Name)
	}
	in.logger.Info("Split text into chunks", "pdf", doc.Name, "chunks", len(chunks))

	records := make([]retrieval.Record, 0, len(chunks)+len(doc.Images))
	for i, res := range in.embedder.EmbedBatch(ctx, chunks) {
		if res.Err != nil {
			in.logger.Warn("Skipping text chunk", "pdf", doc.Name, "chunk", i, "error", res.Err)
			in.metrics.RecordSkipped(skipEmbed)
			report.Skipped++
			continue
		}
		records = append(records, retrieval.NewTextRecord(doc.Name, chunks[i], res.Vector))
		report.TextChunks++
	}

	images := in.imageUnits(ctx, doc)
	var (
		pending []int
		texts   []string
	)
	for i, img := range images {
		if img.vector == nil {
			pending = append(pending, i)
			texts = append(texts, retrieval.ImageEmbeddingText(img.Context, img.Caption))
		}
	}
	for j, res := range in.embedder.EmbedBatch(ctx, texts) {
		images[pending[j]].vector, images[pending[j]].err = res.Vector, res.Err
	}
	for _, img := range images {
		if img.err != nil {
			in.logger.Warn("Skipping image", "pdf", doc.Name, "image", img.Path, "error", img.err)
			in.metrics.RecordSkipped(skipEmbed)
			report.Skipped++
			continue
		}
		records = append(records, retrieval.NewImageRecord(doc.Name, img.ImageSource, img.vector))
		report.ImageRecords++
	}

	if err := in.manager.Store(ctx, idx, records, in.opts.BatchSize); err != nil {
		return report, err
	}
	in.metrics.RecordIngested(retrieval.TypeText, report.TextChunks)
	in.metrics.RecordIngested(retrieval.TypeImage, report.ImageRecords)

	in.logger.Info("Stored document",
		"pdf", doc.Name,
		"text_chunks", report.TextChunks,
		"image_records", report.ImageRecords,
		"skipped", report.Skipped,
	)
	return report, nil
}

type imageUnit struct {
	retrieval.ImageSource
	vector []float32
	err    error
}

// imageUnits pairs every extracted image with its context and, when
// enabled, a caption. An image without context embeds its caption directly.
// A failed caption falls back to the context alone.
func (in *Ingester) imageUnits(ctx context.Context, doc *extract.Document) []imageUnit {
	units := make([]imageUnit, len(doc.Images))
	for i, img := range doc.Images {
		units[i].ImageSource = retrieval.ImageSource{Path: img.ImagePath, Context: img.ContextText}
		if !in.opts.EmbedImageContent {
			continue
		}
		caption, vec, err := in.embedder.EmbedImage(ctx, img.ImagePath)
		if err != nil {
			in.logger.Warn("Captioning image", "pdf", doc.Name, "image", img.ImagePath, "error", err)
			in.metrics.RecordSkipped(skipCaption)
			continue
		}
		units[i].Caption = caption
		if strings.TrimSpace(img.ContextText) == "" {
			units[i].vector = vec
		}
	}
	return units
}
