// Package registry owns trained model artifacts: loading, versioning, and
// atomic hot-swap so in-flight scoring calls never observe a torn artifact.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	// ErrNoArtifact is returned when no model artifact is loaded. Scoring
	// recovers locally via the deterministic heuristic; this is degraded
	// mode, not a fatal error.
	ErrNoArtifact = errors.New("no model artifact loaded")

	// ErrBadArtifact is returned when an artifact fails validation. The
	// previous artifact stays current.
	ErrBadArtifact = errors.New("invalid model artifact")
)

const artifactFileName = "artifact.json"

// Registry holds the current model artifact behind an atomic pointer.
// Reads are lock-free; Refresh validates a candidate fully before
// publishing it, so readers always see a complete artifact.
type Registry struct {
	dir     string
	current atomic.Pointer[Artifact]
	logger  *slog.Logger
}

// New creates a Registry rooted at dir, seeded with the built-in default
// artifact so scoring works from cold start. dir may be empty when no
// on-disk artifacts are used.
func New(dir string) *Registry {
	r := &Registry{dir: dir, logger: slog.Default()}
	r.current.Store(Default())
	return r
}

// NewEmpty creates a Registry with no artifact loaded. Consumers fall back
// to the deterministic heuristic until Load or Refresh succeeds.
func NewEmpty(dir string) *Registry {
	return &Registry{dir: dir, logger: slog.Default()}
}

// Current returns the current artifact for this instant. The returned
// artifact is immutable and remains valid even if a refresh swaps in a
// newer one mid-call.
func (r *Registry) Current() (*Artifact, bool) {
	a := r.current.Load()
	return a, a != nil
}

// Versions lists the artifact versions available on disk, oldest first.
// Version directory names sort lexicographically by training time.
func (r *Registry) Versions() ([]string, error) {
	if r.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading model dir: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.dir, e.Name(), artifactFileName)); err == nil {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Load reads, validates, and publishes the artifact for the given version.
// On any failure the previous artifact (if any) remains current.
func (r *Registry) Load(ctx context.Context, version string) error {
	if version == "" {
		return fmt.Errorf("%w: empty version", ErrBadArtifact)
	}
	a, err := r.read(ctx, version)
	if err != nil {
		return err
	}
	r.publish(a)
	return nil
}

// Refresh loads the newest on-disk artifact and hot-swaps it in. Returns
// the published version. If no newer artifact exists, or loading fails or
// the context expires, the previous artifact stays current and the error
// is surfaced as a warning to the operator — never into a scoring call.
func (r *Registry) Refresh(ctx context.Context) (string, error) {
	versions, err := r.Versions()
	if err != nil {
		return r.currentVersion(), err
	}
	if len(versions) == 0 {
		return r.currentVersion(), fmt.Errorf("refresh: no artifacts in %s", r.dir)
	}
	newest := versions[len(versions)-1]
	if cur := r.current.Load(); cur != nil && cur.Version == newest {
		return newest, nil
	}

	a, err := r.read(ctx, newest)
	if err != nil {
		r.logger.Warn("artifact refresh failed, keeping current artifact",
			"version", newest, "error", err)
		return r.currentVersion(), err
	}
	r.publish(a)
	return newest, nil
}

// read loads and validates one artifact without publishing it. The context
// bounds the disk read; artifact loading is the only operation in the
// engine where cancellation is meaningful.
func (r *Registry) read(ctx context.Context, version string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loading artifact %s: %w", version, err)
	}
	path := filepath.Join(r.dir, version, artifactFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", version, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loading artifact %s: %w", version, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrBadArtifact, path, err)
	}
	if a.Version == "" {
		a.Version = version
	}
	if a.Version != version {
		return nil, fmt.Errorf("%w: directory %q holds artifact version %q", ErrBadArtifact, version, a.Version)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Registry) publish(a *Artifact) {
	r.current.Store(a)
	r.logger.Info("model artifact published",
		"version", a.Version,
		"categories", len(a.Categories),
		"training_samples", a.TrainingSampleCount)
}

func (r *Registry) currentVersion() string {
	if a := r.current.Load(); a != nil {
		return a.Version
	}
	return ""
}

// WriteArtifact serializes an artifact into dir/<version>/artifact.json.
// The write goes through a temp file and rename so a concurrent Refresh
// never reads a partially written artifact.
func WriteArtifact(dir string, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	versionDir := filepath.Join(dir, a.Version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling artifact: %w", err)
	}
	tmp := filepath.Join(versionDir, artifactFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(versionDir, artifactFileName)); err != nil {
		return fmt.Errorf("publishing artifact file: %w", err)
	}
	return nil
}
