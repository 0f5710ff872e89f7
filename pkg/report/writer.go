package report

import (
	"fmt"
	"path/filepath"

	"github.com/esmf-org/branch-summary/pkg/archive"
	"github.com/esmf-org/branch-summary/pkg/fsutil"
)

// LatestAlias is the per-branch report alias overwritten every run to
// point readers at the newest identifier.
const LatestAlias = "-latest.md"

// WriteReports renders rows and writes the report documents for one build
// identifier into dir: a markdown table, a CSV, and, when latest is set,
// the per-branch latest alias. An empty row set is a loud failure; callers
// skip rendering when there is nothing to report.
func (r *Renderer) WriteReports(dir, identifier string, rows []archive.Row, latest bool) error {
	if len(rows) == 0 {
		return fmt.Errorf("no rows to report for %s", identifier)
	}

	md, err := r.RenderMarkdown(rows)
	if err != nil {
		return err
	}

	csvDoc, err := r.RenderCSV(rows)
	if err != nil {
		return err
	}

	mdPath := filepath.Join(dir, identifier+".md")
	if err := fsutil.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return err
	}

	r.log.WithField("path", mdPath).Debug("wrote markdown report")

	csvPath := filepath.Join(dir, identifier+".csv")
	if err := fsutil.WriteFile(csvPath, []byte(csvDoc), 0o644); err != nil {
		return err
	}

	r.log.WithField("path", csvPath).Debug("wrote csv report")

	if latest {
		latestPath := filepath.Join(dir, LatestAlias)
		if err := fsutil.WriteFile(latestPath, []byte(md), 0o644); err != nil {
			return err
		}

		r.log.WithField("path", latestPath).Debug("wrote latest alias")
	}

	return nil
}
