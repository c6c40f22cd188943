package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var ctx = context.Background()

func testArtifact(version string) *Artifact {
	a := Default()
	a.Version = version
	a.TrainedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a.TrainingSampleCount = 42
	return a
}

// TestNew_SeedsBuiltinArtifact verifies a fresh registry scores from cold
// start with the builtin artifact.
func TestNew_SeedsBuiltinArtifact(t *testing.T) {
	r := New(t.TempDir())

	a, ok := r.Current()
	if !ok {
		t.Fatal("Current() = false, want builtin artifact")
	}
	if a.Version != DefaultVersion {
		t.Errorf("Version = %q, want %q", a.Version, DefaultVersion)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("builtin artifact invalid: %v", err)
	}
}

func TestNewEmpty_NoArtifact(t *testing.T) {
	r := NewEmpty(t.TempDir())
	if _, ok := r.Current(); ok {
		t.Error("Current() = true, want no artifact")
	}
}

// TestWriteAndLoadRoundTrip writes an artifact to disk and loads it back.
func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testArtifact("20260301T000000")

	if err := WriteArtifact(dir, want); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	r := NewEmpty(dir)
	if err := r.Load(ctx, "20260301T000000"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := r.Current()
	if !ok {
		t.Fatal("Current() = false after Load")
	}
	if got.Version != want.Version {
		t.Errorf("Version = %q, want %q", got.Version, want.Version)
	}
	if got.TrainingSampleCount != want.TrainingSampleCount {
		t.Errorf("TrainingSampleCount = %d, want %d", got.TrainingSampleCount, want.TrainingSampleCount)
	}
	if len(got.Categories) != len(want.Categories) {
		t.Errorf("len(Categories) = %d, want %d", len(got.Categories), len(want.Categories))
	}
}

// TestWriteArtifact_RejectsInvalid verifies validation gates the write.
func TestWriteArtifact_RejectsInvalid(t *testing.T) {
	bad := testArtifact("bad")
	bad.Categories = nil

	err := WriteArtifact(t.TempDir(), bad)
	if !errors.Is(err, ErrBadArtifact) {
		t.Errorf("error = %v, want ErrBadArtifact", err)
	}
}

// TestLoad_MissingVersionKeepsCurrent verifies a failed load never unseats
// the current artifact.
func TestLoad_MissingVersionKeepsCurrent(t *testing.T) {
	r := New(t.TempDir())

	if err := r.Load(ctx, "does-not-exist"); err == nil {
		t.Fatal("expected error for missing version")
	}

	a, ok := r.Current()
	if !ok || a.Version != DefaultVersion {
		t.Errorf("current artifact changed after failed load: %v, %v", a, ok)
	}
}

// TestLoad_VersionMismatch verifies a directory holding a different artifact
// version is rejected.
func TestLoad_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifact(dir, testArtifact("v-actual")); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	// Rename the directory so it no longer matches the embedded version.
	if err := os.Rename(filepath.Join(dir, "v-actual"), filepath.Join(dir, "v-claimed")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	r := NewEmpty(dir)
	err := r.Load(ctx, "v-claimed")
	if !errors.Is(err, ErrBadArtifact) {
		t.Errorf("error = %v, want ErrBadArtifact", err)
	}
}

// TestLoad_CorruptJSONKeepsCurrent verifies malformed artifact files are
// rejected without unseating the current artifact.
func TestLoad_CorruptJSONKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	versionDir := filepath.Join(dir, "v-corrupt")
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "artifact.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(dir)
	if err := r.Load(ctx, "v-corrupt"); !errors.Is(err, ErrBadArtifact) {
		t.Fatalf("error = %v, want ErrBadArtifact", err)
	}
	if a, _ := r.Current(); a.Version != DefaultVersion {
		t.Errorf("current version = %q, want %q", a.Version, DefaultVersion)
	}
}

// TestVersions_SortedOldestFirst verifies the on-disk version listing.
func TestVersions_SortedOldestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"20260301T000000", "20260101T000000", "20260201T000000"} {
		if err := WriteArtifact(dir, testArtifact(v)); err != nil {
			t.Fatalf("WriteArtifact(%s): %v", v, err)
		}
	}
	// Directories without an artifact file are ignored.
	if err := os.MkdirAll(filepath.Join(dir, "empty-dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewEmpty(dir)
	got, err := r.Versions()
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	want := []string{"20260101T000000", "20260201T000000", "20260301T000000"}
	if len(got) != len(want) {
		t.Fatalf("Versions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Versions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVersions_MissingDir(t *testing.T) {
	r := NewEmpty(filepath.Join(t.TempDir(), "nope"))
	got, err := r.Versions()
	if err != nil || got != nil {
		t.Errorf("Versions = %v, %v; want nil, nil", got, err)
	}
}

// TestRefresh_PicksNewest verifies refresh publishes the lexicographically
// newest on-disk version.
func TestRefresh_PicksNewest(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"20260101T000000", "20260301T000000"} {
		if err := WriteArtifact(dir, testArtifact(v)); err != nil {
			t.Fatalf("WriteArtifact(%s): %v", v, err)
		}
	}

	r := NewEmpty(dir)
	version, err := r.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if version != "20260301T000000" {
		t.Errorf("Refresh = %q, want newest version", version)
	}
	if a, _ := r.Current(); a.Version != "20260301T000000" {
		t.Errorf("current version = %q, want newest", a.Version)
	}
}

// TestRefresh_EmptyDirKeepsCurrent verifies refresh against an empty model
// directory fails without unseating the current artifact.
func TestRefresh_EmptyDirKeepsCurrent(t *testing.T) {
	r := New(t.TempDir())

	version, err := r.Refresh(ctx)
	if err == nil {
		t.Fatal("expected error for empty model directory")
	}
	if version != DefaultVersion {
		t.Errorf("Refresh returned %q, want retained %q", version, DefaultVersion)
	}
}

// TestRefresh_NoopWhenCurrentIsNewest verifies refresh short-circuits when
// the newest version is already published.
func TestRefresh_NoopWhenCurrentIsNewest(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifact(dir, testArtifact("20260301T000000")); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	r := NewEmpty(dir)
	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	before, _ := r.Current()

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	after, _ := r.Current()
	if before != after {
		t.Error("refresh republished an identical version")
	}
}

// TestRefresh_CancelledContext verifies cancellation surfaces as an error
// and the current artifact stays published.
func TestRefresh_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifact(dir, testArtifact("20260301T000000")); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(dir)
	if _, err := r.Refresh(cancelled); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if a, _ := r.Current(); a.Version != DefaultVersion {
		t.Errorf("current version = %q, want retained %q", a.Version, DefaultVersion)
	}
}

// TestConcurrentReadersDuringSwap hammers Current while artifacts hot-swap,
// verifying readers always observe a complete, valid artifact.
func TestConcurrentReadersDuringSwap(t *testing.T) {
	dir := t.TempDir()
	versions := []string{"20260101T000000", "20260201T000000"}
	for _, v := range versions {
		if err := WriteArtifact(dir, testArtifact(v)); err != nil {
			t.Fatalf("WriteArtifact(%s): %v", v, err)
		}
	}

	r := New(dir)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				a, ok := r.Current()
				if !ok {
					t.Error("Current() lost the artifact mid-swap")
					return
				}
				if err := a.Validate(); err != nil {
					t.Errorf("reader observed invalid artifact: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := r.Load(ctx, versions[i%len(versions)]); err != nil {
			t.Errorf("Load: %v", err)
			break
		}
	}
	close(done)
	wg.Wait()
}

// TestArtifactValidate exercises the artifact-level invariants.
func TestArtifactValidate(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"empty version", func(a *Artifact) { a.Version = "" }},
		{"wrong schema version", func(a *Artifact) { a.FeatureSchemaVersion = 99 }},
		{"no categories", func(a *Artifact) { a.Categories = nil }},
		{"zero global shelf life", func(a *Artifact) { a.GlobalShelfLifeDays = 0 }},
		{"reserved category name", func(a *Artifact) { a.Categories[0].Name = "unknown" }},
		{"duplicate category", func(a *Artifact) { a.Categories[1].Name = a.Categories[0].Name }},
		{"category without keywords", func(a *Artifact) { a.Categories[0].Keywords = nil }},
		{"non-positive shelf life", func(a *Artifact) { a.Categories[0].MedianShelfLifeDays = 0 }},
		{"prior above one", func(a *Artifact) { a.Categories[0].Prior = 1.5 }},
		{"negative weight", func(a *Artifact) { a.Scorer.ExpiryWeight = -0.1 }},
		{"all weights zero", func(a *Artifact) {
			a.Scorer = ScorerModel{Calibration: a.Scorer.Calibration}
		}},
		{"short calibration", func(a *Artifact) {
			a.Scorer.Calibration = a.Scorer.Calibration[:1]
		}},
		{"non-monotone calibration", func(a *Artifact) {
			a.Scorer.Calibration[2].Calibrated = 0
		}},
		{"calibration above one", func(a *Artifact) {
			a.Scorer.Calibration[len(a.Scorer.Calibration)-1].Calibrated = 1.2
		}},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			a := Default()
			tt.mutate(a)
			if err := a.Validate(); !errors.Is(err, ErrBadArtifact) {
				t.Errorf("Validate() = %v, want ErrBadArtifact", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default artifact should validate, got %v", err)
	}
}
