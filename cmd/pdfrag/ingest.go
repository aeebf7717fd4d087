package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/pdfrag/internal/extract"
	"github.com/kalambet/pdfrag/internal/pipeline"
	"github.com/kalambet/pdfrag/internal/retrieval"
)

const demoQuery = "What is the main topic of the document?"

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf]",
	Short: "Ingest a PDF into the vector index and run a sample query",
	Long: `Extract the text and images of a PDF, store their embeddings in the vector
index (creating it when needed) and answer a sample question about it.

The PDF defaults to the ingest.pdf_path setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		path := a.cfg.Ingest.PDFPath
		if len(args) == 1 {
			path = args[0]
		}
		return runIngest(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.ingester(), a.index, a.querier(), path, a.cfg.Retrieval.TopK, a.logger)
	},
}

type documentIngester interface {
	Ingest(ctx context.Context, path string) (pipeline.IngestReport, error)
}

type indexOpener interface {
	Open(ctx context.Context) (retrieval.VectorIndex, error)
}

type answerer interface {
	Answer(ctx context.Context, idx retrieval.VectorIndex, query string, topK int) (pipeline.QueryResult, error)
}

// runIngest ingests the PDF at path and answers the sample query against the
// freshly populated index. The answer goes to w, progress to status.
func runIngest(ctx context.Context, w, status io.Writer, ing documentIngester, idx indexOpener, q answerer, path string, topK int, logger *slog.Logger) error {
	logger.Info("Starting processing for PDF", "path", path)

	report, err := ing.Ingest(ctx, path)
	if errors.Is(err, extract.ErrExtraction) {
		logger.Error("Failed to extract text or images from PDF", "path", path, "error", err)
		return err
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}
	newOutput(status).success("Stored %d text chunks and %d images from %s (%d skipped)", report.TextChunks, report.ImageRecords, report.PDFName, report.Skipped)

	index, err := idx.Open(ctx)
	if err != nil {
		return err
	}

	res, err := q.Answer(ctx, index, demoQuery, topK)
	fmt.Fprintf(w, "Query: %s\nResponse: %s\n", demoQuery, res.Answer)
	if err != nil {
		return err
	}
	if len(res.Images) > 0 {
		paths := make([]string, len(res.Images))
		for i, img := range res.Images {
			paths[i] = img.ImagePath
		}
		fmt.Fprintf(w, "Retrieved images: %s\n", strings.Join(paths, ", "))
	}
	return nil
}
