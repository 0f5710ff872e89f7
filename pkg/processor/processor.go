// Package processor orchestrates the summary pipeline. It enumerates
// (machine, branch) jobs, discovers the recent build identifiers for each,
// and walks every identifier through locate, read, correlate, archive,
// render and commit, finishing the round with a single batched push.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/esmf-org/branch-summary/pkg/archive"
	"github.com/esmf-org/branch-summary/pkg/artifact"
	"github.com/esmf-org/branch-summary/pkg/config"
	"github.com/esmf-org/branch-summary/pkg/correlate"
	"github.com/esmf-org/branch-summary/pkg/fsutil"
	"github.com/esmf-org/branch-summary/pkg/gitcli"
	"github.com/esmf-org/branch-summary/pkg/ident"
	"github.com/esmf-org/branch-summary/pkg/locate"
	"github.com/esmf-org/branch-summary/pkg/report"
	"github.com/esmf-org/branch-summary/pkg/upload"
)

// branchLogPattern recovers a branch name from a CI commit log line, e.g.
// "update for test of gfortran_8.3.0_mpiuni_O_develop with hash
// v8.3.0b08-5-g64eb133 on discover" yields "develop". Last-resort branch
// discovery when neither configuration nor a remote snapshot supplied any.
var branchLogPattern = regexp.MustCompile(`(_[Og]_)(.*)(\swith.*)`)

// buildLogExcludes and summaryExcludes filter editor swap files and
// unrelated tooling out of the artifact search.
var (
	buildLogExcludes = []string{"module", "python", "swp"}
	summaryExcludes  = []string{"swp"}
)

// JobRequest is one (machine, branch) unit of work with a history depth.
type JobRequest struct {
	Machine string
	Branch  string
	Depth   int
}

// Gateway bundles the collaborators the processor drives.
type Gateway struct {
	Artifacts *gitcli.Client
	Summaries *gitcli.Client
	Archive   archive.Store
	Renderer  *report.Renderer
	Locator   *locate.Locator

	// Mirror is optional; when set the rendered reports tree is also
	// copied to object storage after the round's push.
	Mirror upload.Mirror
}

// Processor runs summary rounds.
type Processor interface {
	// Branches returns the branches to summarize, discovering them when
	// none were configured.
	Branches(ctx context.Context) ([]string, error)

	// Jobs returns one JobRequest per (machine, branch) permutation.
	Jobs(ctx context.Context) ([]JobRequest, error)

	// Run processes all jobs and pushes the round's commits once.
	Run(ctx context.Context) error
}

// Compile-time interface check.
var _ Processor = (*processor)(nil)

type processor struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	gateway  *Gateway
	branches []string
}

// New creates a Processor over the given gateway.
func New(log logrus.FieldLogger, cfg *config.Config, gateway *Gateway) Processor {
	return &processor{
		log:      log.WithField("component", "processor"),
		cfg:      cfg,
		gateway:  gateway,
		branches: cfg.Jobs.Branches,
	}
}

// Branches resolves the branch list: explicit configuration wins, then a
// remote snapshot of the upstream branch tips, then parsing branch names
// out of the artifact commit log. The result is cached for the round.
func (p *processor) Branches(ctx context.Context) ([]string, error) {
	if len(p.branches) > 0 {
		return p.branches, nil
	}

	if err := p.gateway.Artifacts.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetching artifacts repo: %w", err)
	}

	branches, err := p.gateway.Artifacts.Snapshot(ctx, p.cfg.Jobs.SnapshotRepo)
	if err != nil {
		p.log.WithError(err).Debug("failed to fetch branches via snapshot, parsing logs")

		branches, err = p.branchesFromLog(ctx)
		if err != nil {
			return nil, err
		}
	}

	p.branches = branches

	return p.branches, nil
}

// branchesFromLog derives branch names from the artifact commit log.
func (p *processor) branchesFromLog(ctx context.Context) ([]string, error) {
	out, err := p.gateway.Artifacts.Log(ctx, "--all")
	if err != nil {
		return nil, fmt.Errorf("reading artifact log: %w", err)
	}

	seen := make(map[string]struct{})

	for _, line := range strings.Split(out, "\n") {
		if name := ExtractBranchFromLogLine(line); name != "" {
			seen[name] = struct{}{}
		}
	}

	branches := make([]string, 0, len(seen))
	for name := range seen {
		branches = append(branches, name)
	}

	sort.Strings(branches)

	return branches, nil
}

// ExtractBranchFromLogLine parses a CI commit log line for the branch name
// embedded in its job token, returning "" when the line carries none.
func ExtractBranchFromLogLine(line string) string {
	match := branchLogPattern.FindStringSubmatch(line)
	if match == nil {
		return ""
	}

	return match[2]
}

// Jobs returns one JobRequest per (machine, branch) permutation, machines
// outermost, in configured order.
func (p *processor) Jobs(ctx context.Context) ([]JobRequest, error) {
	branches, err := p.Branches(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]JobRequest, 0, len(p.cfg.Jobs.Machines)*len(branches))

	for _, machine := range p.cfg.Jobs.Machines {
		for _, branch := range branches {
			jobs = append(jobs, JobRequest{
				Machine: machine,
				Branch:  branch,
				Depth:   p.cfg.Jobs.History,
			})
		}
	}

	return jobs, nil
}

// Run processes every job sequentially, then copies the round's auxiliary
// files into the summaries repo and pushes all accumulated commits once.
func (p *processor) Run(ctx context.Context) error {
	jobs, err := p.Jobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := p.processJob(ctx, job); err != nil {
			return fmt.Errorf("processing %s on %s: %w", job.Branch, job.Machine, err)
		}

		p.log.WithFields(logrus.Fields{
			"branch":  job.Branch,
			"machine": job.Machine,
		}).Info("finished summaries")
	}

	if err := p.finishRound(ctx); err != nil {
		return err
	}

	if p.gateway.Mirror != nil {
		if err := p.mirrorReports(ctx); err != nil {
			return err
		}
	}

	return nil
}

// processJob summarizes the recent identifiers of one (machine, branch)
// unit. Finding no identifiers is the normal "nothing to process" path.
func (p *processor) processJob(ctx context.Context, job JobRequest) error {
	log := p.log.WithFields(logrus.Fields{
		"branch":  job.Branch,
		"machine": job.Machine,
	})
	log.Info("generating summaries")

	if err := p.gateway.Artifacts.Checkout(ctx, job.Machine, "", false); err != nil {
		return fmt.Errorf("checking out %s: %w", job.Machine, err)
	}

	if err := p.gateway.Artifacts.Pull(ctx, "origin", job.Machine); err != nil {
		return fmt.Errorf("pulling %s: %w", job.Machine, err)
	}

	identifiers, err := p.recentIdentifiers(ctx, job)
	if err != nil {
		return err
	}

	if len(identifiers) == 0 {
		log.Info("no build identifiers found, nothing to process")

		return nil
	}

	for idx, id := range identifiers {
		rows, err := p.compileRows(ctx, job, id)
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			log.WithField("identifier", id).Info("missing summary data, skipping")

			continue
		}

		if err := p.publish(ctx, job, id, rows, idx == 0); err != nil {
			return err
		}
	}

	return nil
}

// recentIdentifiers returns the most recent unique build identifiers for
// the job, most recent first, bounded by the job's history depth.
func (p *processor) recentIdentifiers(
	ctx context.Context,
	job JobRequest,
) ([]ident.Identifier, error) {
	out, err := p.gateway.Artifacts.Log(ctx, "--format=%B", "origin/"+job.Machine)
	if err != nil {
		return nil, fmt.Errorf("reading log of origin/%s: %w", job.Machine, err)
	}

	return ident.ParseRecent(out, job.Branch, job.Machine, job.Depth), nil
}

// compileRows locates and reads the artifacts for one identifier and joins
// each test summary with its build verdict. File-level failures degrade
// the result set; only version-control failures propagate.
func (p *processor) compileRows(
	ctx context.Context,
	job JobRequest,
	id ident.Identifier,
) ([]*archive.Row, error) {
	log := p.log.WithField("identifier", id)

	root := p.gateway.Artifacts.RepoPath()
	sanitized := ident.SanitizeBranch(job.Branch)

	logs, err := p.gateway.Locator.FindFiles(root, locate.Filter{
		ContentNeedles: []string{id.String()},
		NameIncludes:   []string{"build.log", sanitized, job.Machine},
		NameExcludes:   buildLogExcludes,
	})
	if err != nil {
		return nil, fmt.Errorf("locating build logs: %w", err)
	}

	if len(logs) == 0 {
		log.Warn("no build.log found, no build data can be collected")
	}

	summaries, err := p.gateway.Locator.FindFiles(root, locate.Filter{
		ContentNeedles: []string{id.String()},
		NameIncludes:   []string{"summary.dat", sanitized, job.Machine},
		NameExcludes:   summaryExcludes,
	})
	if err != nil {
		return nil, fmt.Errorf("locating summaries: %w", err)
	}

	if len(summaries) == 0 {
		log.Warn("no summary.dat found, no test data can be collected")
	}

	if len(logs) == 0 && len(summaries) == 0 {
		p.verifyNoMatches(root, id)
	}

	verdicts := correlate.NewVerdicts(p.log)

	for _, path := range logs {
		attrs, err := artifact.AttributesFromPath(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("cannot derive job attributes")

			continue
		}

		verdicts.Record(attrs, artifact.IsBuildPassing(p.log, path))
	}

	rows := make([]*archive.Row, 0, len(summaries))

	for _, path := range summaries {
		summary, err := artifact.ReadSummary(p.log, path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unreadable summary")

			continue
		}

		revision, err := p.gateway.Artifacts.LastRevisionOf(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("resolving revision of %s: %w", path, err)
		}

		rows = append(rows, rowFromSummary(summary, verdicts.Lookup(summary.Attrs), revision, id))
	}

	return rows, nil
}

// verifyNoMatches runs a diagnostic full-tree search when neither logs nor
// summaries matched, solely to enrich the warning. It never changes
// control flow.
func (p *processor) verifyNoMatches(root string, id ident.Identifier) {
	matches, err := p.gateway.Locator.FindFiles(root, locate.Filter{
		ContentNeedles: []string{id.String()},
		NameExcludes:   []string{p.cfg.Global.LogFile, ".git"},
	})
	if err != nil || len(matches) == 0 {
		return
	}

	sample := matches
	if len(sample) > 10 {
		sample = sample[:10]
	}

	p.log.WithFields(logrus.Fields{
		"identifier": id,
		"count":      len(matches),
		"sample":     sample,
	}).Error("identifier appears in the tree but matched no artifact filters")
}

// rowFromSummary builds the persisted row for one test summary.
func rowFromSummary(
	summary *artifact.TestSummary,
	buildPassed bool,
	revision string,
	id ident.Identifier,
) *archive.Row {
	unit := summary.Counter("unit")
	system := summary.Counter("system")
	example := summary.Counter("example")
	nuopc := summary.Counter("nuopc")

	return &archive.Row{
		Branch:          summary.Attrs.Branch,
		Host:            summary.Attrs.Host,
		Compiler:        summary.Attrs.Compiler,
		CompilerVersion: summary.Attrs.CompilerVersion,
		MPI:             summary.Attrs.MPI,
		MPIVersion:      summary.Attrs.MPIVersion,
		Optimization:    summary.Attrs.Optimization,
		OS:              summary.OS,
		UnitPass:        string(unit.Pass),
		UnitFail:        string(unit.Fail),
		SystemPass:      string(system.Pass),
		SystemFail:      string(system.Fail),
		ExamplePass:     string(example.Pass),
		ExampleFail:     string(example.Fail),
		NuopcPass:       string(nuopc.Pass),
		NuopcFail:       string(nuopc.Fail),
		BuildPassed:     buildPassed,
		ArtifactsHash:   revision,
		BranchHash:      id.String(),
	}
}

// publish archives the compiled rows, renders the reports for the
// identifier from the archived state, and commits them to the summaries
// repo. The push happens once at the end of the round.
func (p *processor) publish(
	ctx context.Context,
	job JobRequest,
	id ident.Identifier,
	rows []*archive.Row,
	latest bool,
) error {
	affected, err := p.gateway.Archive.InsertRows(ctx, rows)
	if err != nil {
		return fmt.Errorf("archiving rows for %s: %w", id, err)
	}

	p.log.WithFields(logrus.Fields{
		"identifier": id,
		"rows":       affected,
	}).Info("processed rows")

	stored, err := p.gateway.Archive.FetchRowsByIdentifier(ctx, id.String())
	if err != nil {
		return fmt.Errorf("fetching archived rows for %s: %w", id, err)
	}

	branchDir := filepath.Join(
		p.gateway.Summaries.RepoPath(),
		ident.SanitizeBranch(job.Branch),
	)

	if err := p.gateway.Renderer.WriteReports(branchDir, id.String(), stored, latest); err != nil {
		return fmt.Errorf("writing reports for %s: %w", id, err)
	}

	if err := p.gateway.Summaries.Add(ctx); err != nil {
		return fmt.Errorf("staging reports: %w", err)
	}

	if err := p.gateway.Summaries.Commit(ctx, commitMessage(job.Branch, id)); err != nil {
		return fmt.Errorf("committing reports: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"branch":     job.Branch,
		"machine":    job.Machine,
		"identifier": id,
	}).Info("finished summary")

	return nil
}

// commitMessage is the canned per-summary commit message.
func commitMessage(branch string, id ident.Identifier) string {
	return fmt.Sprintf("updated summary for hash %s on %s", id, branch)
}

// finishRound copies the round's auxiliary files into the summaries repo,
// commits them, and performs the single outward push.
func (p *processor) finishRound(ctx context.Context) error {
	p.copyAuxFiles()

	if err := p.gateway.Summaries.Add(ctx); err != nil {
		return fmt.Errorf("staging auxiliary files: %w", err)
	}

	if err := p.gateway.Summaries.Commit(ctx, "updating test artifacts"); err != nil {
		return fmt.Errorf("committing auxiliary files: %w", err)
	}

	p.log.Info("pushing summaries")

	if err := p.gateway.Summaries.Push(ctx, "origin", ""); err != nil {
		return fmt.Errorf("pushing summaries: %w", err)
	}

	return nil
}

// copyAuxFiles copies the run log and, for file-backed archives, the
// archive database into the summaries repo. Absence is recoverable: a
// missing auxiliary file degrades the published bundle, not the round.
func (p *processor) copyAuxFiles() {
	paths := []string{p.cfg.Global.LogFile}
	if p.cfg.Archive.Driver == "sqlite" {
		paths = append(paths, p.cfg.Archive.SQLite.Path)
	}

	for _, src := range paths {
		if src == "" {
			continue
		}

		dst := filepath.Join(p.gateway.Summaries.RepoPath(), filepath.Base(src))

		if err := fsutil.CopyFile(src, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				p.log.WithField("path", src).Warn("auxiliary file missing, not copied")
			} else {
				p.log.WithError(err).WithField("path", src).Warn("could not copy auxiliary file")
			}
		}
	}
}

// mirrorReports uploads the rendered reports tree to object storage.
func (p *processor) mirrorReports(ctx context.Context) error {
	if err := p.gateway.Mirror.Preflight(ctx); err != nil {
		return fmt.Errorf("mirror preflight: %w", err)
	}

	if err := p.gateway.Mirror.MirrorReports(ctx, p.gateway.Summaries.RepoPath()); err != nil {
		return fmt.Errorf("mirroring reports: %w", err)
	}

	return nil
}
