package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/pdfrag/internal/composer"
	"github.com/kalambet/pdfrag/internal/pipeline"
	"github.com/kalambet/pdfrag/internal/retrieval"
	"github.com/kalambet/pdfrag/internal/storage"
)

const maxMCPTopK = 50

// DocumentIngester stores one PDF in the vector index.
type DocumentIngester interface {
	Ingest(ctx context.Context, path string) (pipeline.IngestReport, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Querier  Querier
	Ingester DocumentIngester
	Index    IndexManager
	Catalog  Catalog // optional; enables the documents resource
	TopK     int
	Version  string
}

// NewMCPServer creates an MCP server exposing the query and ingest tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"pdfrag",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("pdfrag answers questions about ingested PDF documents, citing the images found near the relevant text."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("query_documents",
			mcp.WithDescription("Answer a question from the ingested PDFs. Returns the answer and relevant images with their surrounding text."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Number of index matches to use (default 5)")),
		),
		mcpQueryDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_pdf",
			mcp.WithDescription("Extract text and images from a local PDF and store them in the vector index."),
			mcp.WithString("path", mcp.Description("Path of the PDF file"), mcp.Required()),
		),
		mcpIngestPDF(deps),
	)

	s.AddTool(
		mcp.NewTool("index_stats",
			mcp.WithDescription("Report the name, record count and dimension of the vector index."),
		),
		mcpIndexStats(deps),
	)

	if deps.Catalog != nil {
		s.AddResource(
			mcp.NewResource(
				"pdfrag://documents",
				"Ingested Documents",
				mcp.WithResourceDescription("The 20 most recently submitted documents and their ingestion status"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceDocuments(deps),
		)
	}

	return s
}

func mcpQueryDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		topK := req.GetInt("top_k", deps.TopK)
		if topK <= 0 {
			topK = pipeline.DefaultTopK
		}
		if topK > maxMCPTopK {
			topK = maxMCPTopK
		}

		idx, err := deps.Index.Open(ctx)
		if errors.Is(err, retrieval.ErrIndexNotFound) {
			return mcpError(fmt.Sprintf("index %s does not exist; ingest a PDF first", deps.Index.Spec().Name)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open index: %v", err)), nil
		}

		res, err := deps.Querier.Answer(ctx, idx, query, topK)
		if err != nil {
			return mcpError(res.Answer), nil
		}
		if res.Images == nil {
			res.Images = []composer.ImageRef{}
		}

		b, err := json.Marshal(queryResponse{Answer: res.Answer, Images: res.Images})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIngestPDF(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || path == "" {
			return mcpError("path is required"), nil
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		report, err := deps.Ingester.Ingest(ctx, path)
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}

		b, err := json.Marshal(report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIndexStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idx, err := deps.Index.Open(ctx)
		if errors.Is(err, retrieval.ErrIndexNotFound) {
			return mcpError(fmt.Sprintf("index %s does not exist", deps.Index.Spec().Name)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open index: %v", err)), nil
		}

		stats, err := idx.Stats(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read index stats: %v", err)), nil
		}

		b, err := json.Marshal(indexResponse{Name: idx.Name(), Count: stats.Count, Dimension: stats.Dimension})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceDocuments(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs, err := deps.Catalog.ListDocuments(20)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}

		type documentSummary struct {
			ID        string `json:"id"`
			PDFName   string `json:"pdf_name"`
			Status    string `json:"status"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]documentSummary, len(docs))
		for i, d := range docs {
			summaries[i] = documentSummary{
				ID:        d.ID,
				PDFName:   d.PDFName,
				Status:    d.Status,
				CreatedAt: d.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

var _ Catalog = (*storage.Store)(nil)

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
