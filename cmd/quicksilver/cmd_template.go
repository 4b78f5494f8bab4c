package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/CTAG07/Quicksilver/pkg/compiler"
	"github.com/CTAG07/Quicksilver/pkg/data"
	"github.com/CTAG07/Quicksilver/pkg/engine"
)

func newRenderCmd(opts *options) *cobra.Command {
	var (
		dataArg string
		output  string
		escape  string
		inline  bool
	)
	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Render a template to stdout or a file",
		Long: `Render the template NAME against a dataset.

--data takes either a data file (HDF, JSON, YAML or CBOR, picked by extension)
or the name of a dataset in the data directory or the store. With --inline,
NAME is the template source itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if escape != "" {
				a.config.Engine.EscapeMode = escape
			}
			if err = a.openEngine(); err != nil {
				return err
			}

			root, err := resolveData(cmd, a, dataArg)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if inline {
				err = a.engine.RenderString(&buf, args[0], root)
			} else {
				err = a.engine.Render(&buf, args[0], root)
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err = atomic.WriteFile(output, &buf); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			a.logger.Info("Rendered template", "template", args[0], "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataArg, "data", "d", "", "Data file or dataset name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file atomically")
	cmd.Flags().StringVar(&escape, "escape", "", "Override the configured escape mode")
	cmd.Flags().BoolVar(&inline, "inline", false, "Treat NAME as template source")
	return cmd
}

// resolveData prefers an existing file and falls back to a dataset name.
func resolveData(cmd *cobra.Command, a *app, arg string) (*data.Node, error) {
	if arg == "" {
		return data.New(), nil
	}
	if _, err := os.Stat(arg); err == nil {
		return readDataFile(arg)
	}
	return a.loadDataset(cmd.Context(), arg)
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [NAME...]",
		Short: "Compile templates and report errors and source digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if err = a.openEngine(); err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = a.engine.TemplateNames()
			}
			return checkTemplates(cmd.OutOrStdout(), a.engine, names)
		},
	}
}

// checkTemplates compiles every named template and prints one line per
// template with its status and the digest of its source.
func checkTemplates(w io.Writer, e *engine.Engine, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var errs []error
	for _, name := range names {
		src, err := compiler.ReadSource(name, e.Resources())
		if err != nil {
			errs = append(errs, err)
			_, _ = fmt.Fprintf(tw, "%s\tMISSING\t-\n", name)
			continue
		}
		digest := engine.Digest(src)[:16]
		if _, err = e.Load(name, nil); err != nil {
			errs = append(errs, err)
			_, _ = fmt.Fprintf(tw, "%s\tERROR\t%s\t%v\n", name, digest, err)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\tOK\t%s\n", name, digest)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d templates failed: %w", len(errs), len(names), errors.Join(errs...))
	}
	return nil
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump NAME",
		Short: "Print the compiled form of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath, opts.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if err = a.openEngine(); err != nil {
				return err
			}
			t, err := a.engine.Load(args[0], nil)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), compiler.Dump(t))
			return err
		},
	}
}
