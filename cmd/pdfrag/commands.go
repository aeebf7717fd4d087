package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kalambet/pdfrag/internal/config"
	"github.com/kalambet/pdfrag/internal/storage"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit <pdf>",
	Short: "Queue a PDF for ingestion by a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := submitDocument(cmd.Context(), client, path)
		if err != nil {
			return err
		}
		newOutput(cmd.ErrOrStderr()).success("Queued document %s", id)
		return nil
	},
}

func submitDocument(ctx context.Context, c *apiClient, path string) (string, error) {
	resp, err := c.post(ctx, "/v1/documents", map[string]string{"path": path})
	if err != nil {
		return "", err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result["id"], nil
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents [id]",
	Short: "List submitted documents or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), "/v1/documents/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			var doc storage.Document
			if err := decodeJSON(resp, &doc); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/documents?limit=%d", limit))
		if err != nil {
			return err
		}
		var docs []storage.Document
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}
		printDocuments(cmd.OutOrStdout(), docs)
		return nil
	},
}

func init() {
	documentsCmd.Flags().Int("limit", 20, "maximum number of documents to list")
}

func printDocuments(w io.Writer, docs []storage.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return
	}
	out := newOutput(w)
	for _, d := range docs {
		id := d.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := d.Status
		switch d.Status {
		case storage.StatusDone:
			status = out.paint(colorGreen, status)
		case storage.StatusFailed:
			status = out.paint(colorRed, status)
		}
		fmt.Fprintf(w, "%s  %s  %-9s  %d chunks, %d images\n",
			out.paint(colorCyan, id),
			d.CreatedAt.Format("2006-01-02 15:04"),
			status,
			d.TextChunks,
			d.ImageRecords,
		)
		if d.Error != "" {
			fmt.Fprintf(w, "          %s\n", d.Error)
		}
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := newOutput(cmd.OutOrStdout())
		fmt.Fprintf(out.w, "# %s\n", config.Path())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out.w, "  %s = %s\n", out.paint(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		newOutput(cmd.ErrOrStderr()).success("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
