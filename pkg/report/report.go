// Package report renders archived summary rows into deterministic report
// documents.
package report

import (
	"encoding/csv"
	"fmt"
	"path"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sirupsen/logrus"

	"github.com/esmf-org/branch-summary/pkg/archive"
)

// headers is the fixed column order of every rendered document.
var headers = []string{
	"branch", "host", "compiler", "mpi", "netcdf", "optimization", "os",
	"build",
	"unit_pass", "unit_fail",
	"system_pass", "system_fail",
	"example_pass", "example_fail",
	"nuopc_pass", "nuopc_fail",
	"artifacts", "modified",
}

// modifiedFormat fixes the timestamp rendering so identical row sets
// produce byte-identical documents.
const modifiedFormat = "2006-01-02 15:04:05"

// Renderer writes markdown and CSV projections of archived rows.
type Renderer struct {
	log logrus.FieldLogger
}

// New creates a Renderer.
func New(log logrus.FieldLogger) *Renderer {
	return &Renderer{log: log.WithField("component", "report")}
}

// formatRow projects one archived row into its rendered cells, in header
// order.
func formatRow(row *archive.Row) []string {
	build := "fail"
	if row.BuildPassed {
		build = "pass"
	}

	netcdfC, netcdfF := row.NetCDFC, row.NetCDFF
	if netcdfC == "" {
		netcdfC = "none"
	}

	if netcdfF == "" {
		netcdfF = "none"
	}

	return []string{
		row.Branch,
		row.Host,
		row.Compiler + "/" + row.CompilerVersion,
		row.MPI + "/" + row.MPIVersion,
		netcdfC + " " + netcdfF,
		row.Optimization,
		row.OS,
		build,
		counter(row.UnitPass), counter(row.UnitFail),
		counter(row.SystemPass), counter(row.SystemFail),
		counter(row.ExamplePass), counter(row.ExampleFail),
		counter(row.NuopcPass), counter(row.NuopcFail),
		artifactLink(row),
		row.Modified.UTC().Format(modifiedFormat),
	}
}

// counter maps the queued sentinel to its reader-facing label.
func counter(value string) string {
	if value == "queued" {
		return "pending"
	}

	return value
}

// artifactLink builds the relative hyperlink into the artifacts tree for
// one row's configuration.
func artifactLink(row *archive.Row) string {
	target := path.Join(
		row.Branch,
		row.Host,
		row.Compiler,
		row.CompilerVersion,
		row.Optimization,
		row.MPI,
		strings.ToLower(row.MPIVersion),
	)

	return fmt.Sprintf("[artifacts](%s)", target)
}

// RenderMarkdown renders rows as a markdown table with a leading row-index
// column. Rendering an explicitly requested empty row set is an error; the
// orchestrator skips rendering entirely when there is nothing to report.
func (r *Renderer) RenderMarkdown(rows []archive.Row) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("refusing to render empty report")
	}

	tbl := table.NewWriter()
	// Keep header cells exactly as defined; the default style upper-cases
	// them.
	tbl.Style().Format.Header = text.FormatDefault

	header := make(table.Row, 0, len(headers)+1)

	header = append(header, "")
	for _, h := range headers {
		header = append(header, h)
	}

	tbl.AppendHeader(header)

	for i := range rows {
		cells := formatRow(&rows[i])

		tableRow := make(table.Row, 0, len(cells)+1)

		tableRow = append(tableRow, i)
		for _, cell := range cells {
			tableRow = append(tableRow, cell)
		}

		tbl.AppendRow(tableRow)
	}

	return tbl.RenderMarkdown() + "\n", nil
}

// RenderCSV renders rows as CSV with a header row and no index column.
func (r *Renderer) RenderCSV(rows []archive.Row) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("refusing to render empty report")
	}

	var sb strings.Builder

	w := csv.NewWriter(&sb)

	if err := w.Write(headers); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}

	for i := range rows {
		if err := w.Write(formatRow(&rows[i])); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	return sb.String(), nil
}
