package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newStoreCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the SQLite template store",
	}

	// withStore opens the store for a subcommand and closes it afterwards.
	withStore := func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if err = a.openStore(); err != nil {
				return err
			}
			return run(cmd, a, args)
		}
	}

	putCmd := &cobra.Command{
		Use:   "put NAME FILE",
		Short: "Store the template source in FILE under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			src, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return a.store.PutTemplate(cmd.Context(), args[0], string(src))
		}),
	}

	dataCmd := &cobra.Command{
		Use:   "data NAME FILE",
		Short: "Store the data file FILE as the dataset NAME",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			root, err := readDataFile(args[1])
			if err != nil {
				return err
			}
			return a.store.PutDataset(cmd.Context(), args[0], root)
		}),
	}

	var datasets bool
	rmCmd := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a template, or a dataset with --dataset",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			if datasets {
				return a.store.DeleteDataset(cmd.Context(), args[0])
			}
			return a.store.DeleteTemplate(cmd.Context(), args[0])
		}),
	}
	rmCmd.Flags().BoolVar(&datasets, "dataset", false, "Remove a dataset instead of a template")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored templates and datasets",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			templates, err := a.store.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			sets, err := a.store.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "templates: %s\n", strings.Join(templates, ", "))
			_, _ = fmt.Fprintf(out, "datasets: %s\n", strings.Join(sets, ", "))
			return nil
		}),
	}

	exportCmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export the store as JSON to FILE or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			var buf bytes.Buffer
			if err := a.store.Export(cmd.Context(), &buf); err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			return atomic.WriteFile(args[0], &buf)
		}),
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a JSON export into the store",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func(f *os.File) {
				_ = f.Close()
			}(f)
			return a.store.Import(cmd.Context(), f)
		}),
	}

	cmd.AddCommand(putCmd, dataCmd, rmCmd, lsCmd, exportCmd, importCmd)
	return cmd
}
