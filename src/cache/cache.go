// Package cache implements the two-tier (local + global) build cache
// described in §4.8/§4.9: a local directory cache keyed by each
// target's combined fingerprint hash, and an abstract global cache the
// scheduler consults on a local miss.
package cache

import (
	"sort"
	"time"

	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/fingerprint"
)

var log = logging.NamedLogger("cache")

// Key is the combined fingerprint hash used as a cache key throughout
// this package.
type Key = fingerprint.Hash

// ArtifactEntry is one entry of artifacts.json: the hash and size of a
// single materialized artifact blob.
type ArtifactEntry struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// ArtifactManifest is the full artifacts.json contents: destination
// path -> blob entry.
type ArtifactManifest map[string]ArtifactEntry

// Summary is summary.json (§6.4): `{name, artifacts_hash, build_time,
// created, accessed}`, written only once a target has been successfully
// built (§4.8 invariant).
type Summary struct {
	Name          string    `json:"name"`
	ArtifactsHash string    `json:"artifacts_hash"`
	BuildTime     int64     `json:"build_time"` // milliseconds
	Created       time.Time `json:"created"`
	Accessed      time.Time `json:"accessed"`
}

// TestManifest is tested.json (§6.4): `{test_name: duration}`, in
// seconds. Only passing outcomes are recorded (§4.8: "tested.json:
// test-pass outcomes") — a missing entry means "never recorded a pass",
// whether that's because the test hasn't run yet or its last attempt
// failed.
type TestManifest map[string]float64

// TargetManifest is target.json (§6.4): the canonical form of a spec —
// `name, builder_name, deps (sorted), flavor, props (sorted), tags
// (sorted), buildenv` — recorded alongside a cache entry and used to
// detect and report cache corruption (a stored manifest that disagrees
// with the current build-file-derived spec).
type TargetManifest struct {
	Name        string                 `json:"name"`
	BuilderName string                 `json:"builder_name"`
	Deps        []string               `json:"deps"`
	Flavor      string                 `json:"flavor"`
	Props       map[string]interface{} `json:"props"`
	Tags        []string               `json:"tags"`
	BuildEnv    string                 `json:"buildenv"`
	SelfHash    string                 `json:"self_hash"`
	Combined    string                 `json:"combined_hash"`
}

// artifactsHash digests an artifact manifest's (destination, blob hash)
// pairs into the single summary.json artifacts_hash, so a summary can be
// compared for corruption without re-reading artifacts.json.
func artifactsHash(artifacts ArtifactManifest) string {
	dests := make([]string, 0, len(artifacts))
	for d := range artifacts {
		dests = append(dests, d)
	}
	sort.Strings(dests)
	parts := make([]string, 0, len(dests)*2)
	for _, d := range dests {
		parts = append(parts, d, artifacts[d].Hash)
	}
	return KeyString(fingerprint.HString(parts...))
}

// Local is the subset of cache behaviour the scheduler needs from the
// on-disk cache (§4.8).
type Local interface {
	// Has reports whether a complete (non-partial) entry exists for key.
	Has(key Key) bool
	// Store writes target.json, artifacts.json and summary.json for key,
	// hardlinking each artifact blob in from srcRoot.
	Store(key Key, manifest TargetManifest, artifacts ArtifactManifest, srcRoot string, buildTime time.Duration) error
	// Fetch reconstitutes a cache entry's artifacts into destRoot,
	// hardlinking blobs back out of the cache. It returns false if no
	// complete entry exists (a partial entry is treated as a miss).
	Fetch(key Key, destRoot string) (ArtifactManifest, bool, error)
	// Touch bumps the accessed timestamp recorded for key on a cache hit.
	Touch(key Key)
	// WriteTestResult records a passing test's duration under testName;
	// it errors if no Summary exists yet for key.
	WriteTestResult(key Key, testName string, duration time.Duration) error
	// TestResult reports whether testName has a recorded pass for key,
	// and its duration if so.
	TestResult(key Key, testName string) (time.Duration, bool)
}

// Global is the abstract remote/mirror cache interface (§4.9).
// Implementations may be a filesystem mirror, an HTTP endpoint, or an
// object store; the scheduler only depends on this interface.
type Global interface {
	Has(key Key) bool
	DownloadSummary(key Key, destDir string) error
	DownloadManifest(key Key, destDir string) error
	DownloadTests(key Key, destDir string) error
	DownloadArtifacts(key Key, hashes map[string]string, destDir string) error
	UploadSummary(key Key, srcDir string) error
	UploadManifest(key Key, srcDir string) error
	UploadArtifacts(key Key, artifacts ArtifactManifest, srcRoot string) error
	UploadTests(key Key, srcDir string) error
}

// KeyString renders a Key as the hex string used in filenames and URLs.
func KeyString(k Key) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(k)*2)
	for i, b := range k {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
