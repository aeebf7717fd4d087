package main

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vector index if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := a.index.Initialize(cmd.Context())
		if err != nil {
			return err
		}
		newOutput(cmd.ErrOrStderr()).success("Index %s is ready", idx.Name())
		return nil
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the vector index and every record in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.index.Delete(cmd.Context()); err != nil {
			return err
		}
		newOutput(cmd.ErrOrStderr()).success("Index %s deleted", a.cfg.Index.Name)
		return nil
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the record count and dimension of the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := a.index.Open(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := idx.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := newOutput(cmd.OutOrStdout())
		out.field("Index", "%s (%s)", idx.Name(), a.cfg.Vector.Backend)
		out.field("Records", "%d", stats.Count)
		out.field("Dimension", "%d", stats.Dimension)
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexInitCmd)
	indexCmd.AddCommand(indexDeleteCmd)
	indexCmd.AddCommand(indexStatsCmd)
}
