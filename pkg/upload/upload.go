// Package upload mirrors the rendered reports tree to remote object
// storage.
package upload

import "context"

// Mirror copies a local reports directory to remote storage. The git
// summaries repository remains the system of record; a mirror is an
// optional convenience for dashboards reading from object storage.
type Mirror interface {
	// Preflight verifies that the remote storage is reachable and
	// writable, failing fast on misconfiguration.
	Preflight(ctx context.Context) error

	// MirrorReports uploads all files under localDir, preserving relative
	// paths beneath the configured prefix.
	MirrorReports(ctx context.Context, localDir string) error
}
