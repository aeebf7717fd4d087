package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kalambet/pdfrag/internal/retrieval"
)

const contextPreviewLen = 100

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask questions interactively",
	Long: `Start an interactive session that answers questions from the vector index.
Images relevant to an answer are listed and can be opened in the system viewer.
Type 'exit' to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		exists, err := a.index.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			a.logger.Error("Index does not exist", "index", a.cfg.Index.Name)
			return fmt.Errorf("index %s does not exist; run 'pdfrag ingest' first", a.cfg.Index.Name)
		}
		idx, err := a.index.Open(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("Connected to index", "index", idx.Name())

		r := &repl{
			in:     bufio.NewScanner(cmd.InOrStdin()),
			out:    cmd.OutOrStdout(),
			q:      a.querier(),
			idx:    idx,
			topK:   a.cfg.Retrieval.TopK,
			open:   func(path string) error { return openImage(path, a.logger) },
			logger: a.logger,
		}
		return r.run(ctx)
	},
}

type repl struct {
	in     *bufio.Scanner
	out    io.Writer
	q      answerer
	idx    retrieval.VectorIndex
	topK   int
	open   func(path string) error
	logger *slog.Logger
}

// run reads queries until exit, end of input or cancellation. Query
// failures are printed and the loop continues.
func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Welcome to the PDF RAG Query Interface!")
	fmt.Fprintln(r.out, "Enter your query below. Type 'exit' to quit.")
	fmt.Fprintln(r.out, "Images relevant to the query will be listed, and you can choose to open them.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		query, ok := r.prompt("\nEnter your query: ")
		if !ok || strings.EqualFold(query, "exit") {
			r.logger.Info("User exited the query interface")
			fmt.Fprintln(r.out, "Exiting query interface.")
			return nil
		}
		if query == "" {
			r.logger.Warn("Empty query entered")
			fmt.Fprintln(r.out, "Please enter a non-empty query.")
			continue
		}

		r.logger.Info("Received user query", "query", query)
		res, err := r.q.Answer(ctx, r.idx, query, r.topK)
		if err != nil {
			r.logger.Error("Query failed", "error", err)
		}
		fmt.Fprintf(r.out, "\nResponse: %s\n", res.Answer)

		if len(res.Images) == 0 {
			fmt.Fprintln(r.out, "\nNo relevant images found.")
			continue
		}

		fmt.Fprintln(r.out, "\nRelevant images:")
		for _, img := range res.Images {
			fmt.Fprintf(r.out, "- %s\n", img.ImagePath)
			if img.Context != "" {
				fmt.Fprintf(r.out, "  Context: %s\n", preview(img.Context, contextPreviewLen))
			} else {
				fmt.Fprintln(r.out, "  Context: No context available")
			}
		}

		answer, ok := r.prompt("\nWould you like to open these images? (y/n): ")
		if !ok {
			fmt.Fprintln(r.out, "Exiting query interface.")
			return nil
		}
		if strings.ToLower(answer) != "y" {
			continue
		}
		for _, img := range res.Images {
			if err := r.open(img.ImagePath); err != nil {
				fmt.Fprintf(r.out, "Failed to open: %s\n", img.ImagePath)
				continue
			}
			fmt.Fprintf(r.out, "Opened: %s\n", img.ImagePath)
		}
	}
}

func (r *repl) prompt(msg string) (string, bool) {
	fmt.Fprint(r.out, msg)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// preview returns the first n runes of s, followed by "..." when s is longer.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// imageOpenCommand returns the command that opens path in the default
// viewer of goos.
func imageOpenCommand(goos, path string) []string {
	switch goos {
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", path}
	case "darwin":
		return []string{"open", path}
	default:
		return []string{"xdg-open", path}
	}
}

func openImage(path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("Image file not found", "path", path)
		return err
	}
	args := imageOpenCommand(runtime.GOOS, path)
	if err := exec.Command(args[0], args[1:]...).Run(); err != nil {
		logger.Error("Failed to open image", "path", path, "error", err)
		return err
	}
	logger.Info("Opened image", "path", path)
	return nil
}
