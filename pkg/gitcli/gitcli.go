// Package gitcli wraps the git command line for the pipeline's
// version-control needs.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// benignWarnings are stderr fragments from non-zero git exits that do not
// abort the run. Anything else is fatal infrastructure failure.
var benignWarnings = []string{
	"not something we can merge",
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
}

// GitError is a fatal git command failure carrying the command's stderr.
type GitError struct {
	Args   []string
	Stderr string
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Stderr))
}

// Client runs git commands against one repository working tree. The
// working directory is always passed explicitly; the process-global
// current directory is never changed.
type Client struct {
	log      logrus.FieldLogger
	repoPath string
}

// New creates a Client for the repository at repoPath.
func New(log logrus.FieldLogger, repoPath string) *Client {
	return &Client{
		log:      log.WithField("component", "git"),
		repoPath: repoPath,
	}
}

// RepoPath returns the repository working tree path.
func (c *Client) RepoPath() string {
	return c.repoPath
}

// run executes git with args in the repository directory. A non-zero exit
// whose stderr matches a benign warning is logged and treated as success;
// any other failure returns a GitError.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return c.runIn(ctx, c.repoPath, args...)
}

func (c *Client) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	c.log.WithFields(logrus.Fields{
		"args": strings.Join(args, " "),
		"dir":  dir,
	}).Debug("running git")

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isBenign(stderr.String()) {
			c.log.WithField("stderr", strings.TrimSpace(stderr.String())).
				Warn("git returned a benign warning")

			return stdout.String(), nil
		}

		return stdout.String(), &GitError{Args: args, Stderr: stderr.String()}
	}

	return stdout.String(), nil
}

func isBenign(stderr string) bool {
	if stderr == "" {
		return false
	}

	for _, warning := range benignWarnings {
		if strings.Contains(stderr, warning) {
			return true
		}
	}

	return false
}

// Fetch runs git fetch.
func (c *Client) Fetch(ctx context.Context) error {
	_, err := c.run(ctx, "fetch")

	return err
}

// Add stages paths, or everything when none are given.
func (c *Client) Add(ctx context.Context, paths ...string) error {
	args := []string{"add", "--all"}
	if len(paths) > 0 {
		args = append([]string{"add"}, paths...)
	}

	_, err := c.run(ctx, args...)

	return err
}

// Checkout checks out ref, optionally restricted to a pathspec. When
// create is set and the plain checkout fails, the ref is force-created
// with -b.
func (c *Client) Checkout(ctx context.Context, ref string, pathspec string, create bool) error {
	args := []string{"checkout", ref}
	if pathspec != "" {
		args = append(args, "--", pathspec)
	}

	_, err := c.run(ctx, args...)
	if err != nil && create {
		c.log.WithField("ref", ref).Info("ref does not exist, creating it")

		_, err = c.run(ctx, append([]string{"checkout", "-b"}, args[1:]...)...)
	}

	return err
}

// Commit records a commit with message.
func (c *Client) Commit(ctx context.Context, message string) error {
	_, err := c.run(ctx, "commit", "-m", message)

	return err
}

// Pull runs git pull from remote, optionally a specific ref.
func (c *Client) Pull(ctx context.Context, remote, ref string) error {
	args := []string{"pull", remote}
	if ref != "" {
		args = append(args, ref)
	}

	_, err := c.run(ctx, args...)

	return err
}

// Push runs git push to remote, optionally a specific ref.
func (c *Client) Push(ctx context.Context, remote, ref string) error {
	args := []string{"push", remote}
	if ref != "" {
		args = append(args, ref)
	}

	_, err := c.run(ctx, args...)

	return err
}

// Log returns the raw output of git log with args.
func (c *Client) Log(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, append([]string{"log"}, args...)...)
}

// LastRevisionOf returns the most recent commit hash touching path, or ""
// when the path has no history.
func (c *Client) LastRevisionOf(ctx context.Context, path string) (string, error) {
	out, err := c.Log(ctx, "--format=%H", "-1", "--", path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// Snapshot lists the branch names currently at the tips of url, via
// ls-remote. This is the branch discovery fallback when no branches are
// configured.
func (c *Client) Snapshot(ctx context.Context, url string) ([]string, error) {
	out, err := c.run(ctx, "ls-remote", "--heads", "--refs", url)
	if err != nil {
		return nil, err
	}

	var branches []string

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}

		_, ref, found := strings.Cut(line, "\t")
		if !found {
			continue
		}

		branches = append(branches, strings.TrimPrefix(ref, "refs/heads/"))
	}

	return branches, nil
}

// CloneShallow clones url into the client's repo path when it does not
// already hold a repository. Depth is limited since only recent history is
// summarized.
func (c *Client) CloneShallow(ctx context.Context, url string) error {
	if _, err := os.Stat(c.repoPath); err == nil {
		if _, err := os.Stat(c.repoPath + "/.git"); err == nil {
			return nil
		}
	}

	if err := os.MkdirAll(c.repoPath, 0o755); err != nil {
		return fmt.Errorf("creating clone directory: %w", err)
	}

	_, err := c.runIn(ctx, c.repoPath, "clone", "--depth=500", url, ".")

	return err
}
