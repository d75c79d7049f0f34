package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/djherbis/atime"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/resonai/ybt-sub000/src/artifact"
)

const (
	targetFileName    = "target.json"
	artifactsFileName = "artifacts.json"
	summaryFileName   = "summary.json"
	testedFileName    = "tested.json"
)

// LocalCache is a directory-backed cache with two subtrees: targets/<key>/
// holding per-target manifests, and artifacts/<hash> holding
// content-addressed artifact blobs shared across targets (§4.8).
// Grounded on the teacher's dirCache (src/cache/dir_cache.go), adapted
// from its tarball/flat-file storage to an explicit manifest + blob-store
// split so artifacts can be shared by content hash across targets
// rather than duplicated per target directory.
type LocalCache struct {
	Dir           string
	HighWaterMark uint64 // bytes
	LowWaterMark  uint64 // bytes

	mu sync.Mutex
}

// NewLocalCache returns a LocalCache rooted at dir, creating it if
// necessary.
func NewLocalCache(dir string, highWaterMarkMB, lowWaterMarkMB int) (*LocalCache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "targets"), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0755); err != nil {
		return nil, err
	}
	return &LocalCache{
		Dir:           dir,
		HighWaterMark: uint64(highWaterMarkMB) * 1024 * 1024,
		LowWaterMark:  uint64(lowWaterMarkMB) * 1024 * 1024,
	}, nil
}

func (c *LocalCache) targetDir(key Key) string {
	return filepath.Join(c.Dir, "targets", KeyString(key))
}

func (c *LocalCache) artifactPath(hash string) string {
	return filepath.Join(c.Dir, "artifacts", hash)
}

// Has reports whether a complete entry (summary + artifacts manifest +
// every referenced blob) exists for key. A partial entry counts as a miss.
func (c *LocalCache) Has(key Key) bool {
	_, ok, _ := c.Fetch(key, "")
	return ok
}

// Store writes a new cache entry for key, hardlinking artifact blobs in
// from srcRoot via a content-addressed store, writing manifests to a
// temporary directory and atomically renaming it into place (§4.8: a
// partial write must never be observable as a complete entry).
func (c *LocalCache) Store(key Key, manifest TargetManifest, artifacts ArtifactManifest, srcRoot string, buildTime time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for dest, entry := range artifacts {
		blob := c.artifactPath(entry.Hash)
		if _, err := os.Stat(blob); err == nil {
			continue // already have this content
		}
		if err := artifact.Link(filepath.Join(srcRoot, dest), blob); err != nil {
			return fmt.Errorf("cache: storing artifact blob for %s: %w", dest, err)
		}
	}

	tmpDir := filepath.Join(c.Dir, "targets", ".tmp-"+uuid.NewString())
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	now := time.Now()
	summary := Summary{
		Name:          manifest.Name,
		ArtifactsHash: artifactsHash(artifacts),
		BuildTime:     buildTime.Milliseconds(),
		Created:       now,
		Accessed:      now,
	}
	if err := writeJSON(filepath.Join(tmpDir, targetFileName), manifest); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmpDir, artifactsFileName), artifacts); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmpDir, summaryFileName), summary); err != nil {
		return err
	}

	dest := c.targetDir(key)
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	if err := os.Rename(tmpDir, dest); err != nil {
		return fmt.Errorf("cache: committing entry for %s: %w", KeyString(key), err)
	}
	return nil
}

// Fetch reconstitutes artifacts for key into destRoot (hardlinking blobs
// back out of the content store), returning the artifact manifest. If
// destRoot is empty, Fetch only validates completeness without
// materializing anything, which Has relies on.
func (c *LocalCache) Fetch(key Key, destRoot string) (ArtifactManifest, bool, error) {
	dir := c.targetDir(key)
	var summary Summary
	if ok, err := readJSON(filepath.Join(dir, summaryFileName), &summary); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}
	var manifest ArtifactManifest
	if ok, err := readJSON(filepath.Join(dir, artifactsFileName), &manifest); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}
	for _, entry := range manifest {
		if _, err := os.Stat(c.artifactPath(entry.Hash)); err != nil {
			log.Debug("cache entry %s is partial: missing blob %s", KeyString(key), entry.Hash)
			return nil, false, nil
		}
	}
	if destRoot != "" {
		for dest, entry := range manifest {
			to := filepath.Join(destRoot, dest)
			if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
				return nil, false, err
			}
			if err := artifact.Link(c.artifactPath(entry.Hash), to); err != nil {
				return nil, false, err
			}
		}
	}
	return manifest, true, nil
}

// Touch bumps the accessed timestamp in summary.json for key. Evict does
// not read it; it ranks blobs by their file access time.
func (c *LocalCache) Touch(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := filepath.Join(c.targetDir(key), summaryFileName)
	var summary Summary
	if ok, err := readJSON(path, &summary); err != nil || !ok {
		return
	}
	summary.Accessed = time.Now()
	if err := writeJSON(path, summary); err != nil {
		log.Warning("failed to update accessed time for %s: %s", KeyString(key), err)
	}
}

// WriteTestResult records testName's passing duration for key, merging it
// into any existing tested.json. It errors if summary.json doesn't exist
// yet (§4.8: tested.json requires a prior successful build).
func (c *LocalCache) WriteTestResult(key Key, testName string, duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.targetDir(key)
	var summary Summary
	if ok, err := readJSON(filepath.Join(dir, summaryFileName), &summary); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("cache: cannot write test result for %s: no summary.json present", KeyString(key))
	}

	path := filepath.Join(dir, testedFileName)
	manifest := TestManifest{}
	if _, err := readJSON(path, &manifest); err != nil {
		return err
	}
	manifest[testName] = duration.Seconds()
	return writeJSON(path, manifest)
}

// TestResult reports whether testName has a recorded pass for key.
func (c *LocalCache) TestResult(key Key, testName string) (time.Duration, bool) {
	var manifest TestManifest
	ok, err := readJSON(filepath.Join(c.targetDir(key), testedFileName), &manifest)
	if err != nil {
		log.Warning("failed to read test result for %s: %s", KeyString(key), err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	secs, present := manifest[testName]
	if !present {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// blobEntry is one artifact blob considered for LRU eviction.
type blobEntry struct {
	path  string
	size  int64
	atime time.Time
}

// Evict trims the artifact blob store down to LowWaterMark once it
// exceeds HighWaterMark, evicting least-recently-accessed blobs first,
// per §4.8's accessed-timestamp eviction heuristic. Grounded on the
// teacher's dirCache.clean (atime-sorted LRU trim).
func (c *LocalCache) Evict() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Join(c.Dir, "artifacts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var blobs []blobEntry
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		blobs = append(blobs, blobEntry{path: path, size: info.Size(), atime: atime.Get(info)})
		total += info.Size()
	}
	if uint64(total) < c.HighWaterMark {
		return nil
	}
	log.Info("artifact cache size %s exceeds high water mark, evicting", humanize.Bytes(uint64(total)))
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].atime.Before(blobs[j].atime) })
	for _, b := range blobs {
		if uint64(total) < c.LowWaterMark {
			break
		}
		if err := os.Remove(b.path); err != nil {
			log.Warning("failed to evict %s: %s", b.path, err)
			continue
		}
		total -= b.size
		log.Debug("evicted %s (%s)", b.path, humanize.Bytes(uint64(b.size)))
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSON decodes path into v, returning (false, nil) if the file
// doesn't exist rather than an error, so missing manifests read as a
// plain cache miss.
func readJSON(path string, v interface{}) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
