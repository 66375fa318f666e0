package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/spf13/cobra"
)

var errFindings = errors.New("cache integrity check found problems")

func newCheckCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the cache store for empty keys and values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := load()
			if err != nil {
				return err
			}
			diag, cleanup, err := wireDiagnostics(bc.Data, newLogger("warn"))
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := diag.Check(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
}

// writeReport renders the report and returns errFindings when it is not clean.
func writeReport(w io.Writer, report *biz.Report) error {
	stats := table.NewWriter()
	stats.SetStyle(table.StyleRounded)
	stats.AppendHeader(table.Row{"Namespace", "Present", "Entries"})
	for _, s := range report.Namespaces {
		stats.AppendRow(table.Row{string(s.Namespace), yesNo(s.Present), strconv.Itoa(s.Entries)})
	}
	stats.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(w, stats.Render())

	if report.OK() {
		fmt.Fprintln(w, "No problems found.")
		return nil
	}

	findings := table.NewWriter()
	findings.SetStyle(table.StyleRounded)
	findings.AppendHeader(table.Row{"Namespace", "Key", "Problem"})
	for _, f := range report.Findings {
		findings.AppendRow(table.Row{string(f.Namespace), f.Key, f.Problem})
	}
	fmt.Fprintln(w, findings.Render())
	return fmt.Errorf("%w: %d", errFindings, len(report.Findings))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
