package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) Key {
	var k Key
	k[0] = b
	return k
}

func TestLocalCacheStoreAndFetchRoundtrip(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := NewLocalCache(cacheDir, 1024, 512)
	require.NoError(t, err)

	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "out.bin"), []byte("payload"), 0644))

	key := testKey(0x01)
	artifacts := ArtifactManifest{
		"out.bin": {Hash: "deadbeef", Size: 7},
	}
	manifest := TargetManifest{Name: "m:t", BuilderName: "bin"}

	require.NoError(t, c.Store(key, manifest, artifacts, srcRoot, 2*time.Second))
	assert.True(t, c.Has(key))

	destRoot := t.TempDir()
	got, ok, err := c.Fetch(key, destRoot)
	require.NoError(t, err)
	require.True(t, ok)
	// Fetch round-trips through JSON on disk; spew.Sdump gives a full
	// field-by-field dump of both sides if the manifests ever diverge,
	// which is more useful here than testify's default diff of
	// ArtifactManifest's map representation.
	assert.Equal(t, artifacts, got, "roundtripped manifest mismatch:\nwant: %s\ngot:  %s", spew.Sdump(artifacts), spew.Sdump(got))

	data, err := os.ReadFile(filepath.Join(destRoot, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalCachePartialEntryIsAMiss(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := NewLocalCache(cacheDir, 1024, 512)
	require.NoError(t, err)

	key := testKey(0x02)
	dir := c.targetDir(key)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, writeJSON(filepath.Join(dir, summaryFileName), Summary{}))
	// No artifacts.json written: entry is partial.

	assert.False(t, c.Has(key))
	_, ok, err := c.Fetch(key, t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalCacheTestResultRequiresSummary(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := NewLocalCache(cacheDir, 1024, 512)
	require.NoError(t, err)

	key := testKey(0x03)
	err = c.WriteTestResult(key, "m:t", time.Second)
	assert.Error(t, err)

	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "out.bin"), []byte("x"), 0644))
	require.NoError(t, c.Store(key, TargetManifest{}, ArtifactManifest{"out.bin": {Hash: "h1", Size: 1}}, srcRoot, 0))

	require.NoError(t, c.WriteTestResult(key, "m:t", 3*time.Second))
	duration, ok := c.TestResult(key, "m:t")
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, duration)

	_, ok = c.TestResult(key, "m:other")
	assert.False(t, ok, "a different test name under the same key must not see this pass")
}

func TestLocalCacheTouchUpdatesAccessed(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := NewLocalCache(cacheDir, 1024, 512)
	require.NoError(t, err)

	key := testKey(0x04)
	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "out.bin"), []byte("x"), 0644))
	require.NoError(t, c.Store(key, TargetManifest{}, ArtifactManifest{"out.bin": {Hash: "h2", Size: 1}}, srcRoot, 0))

	var before Summary
	ok, err := readJSON(filepath.Join(c.targetDir(key), summaryFileName), &before)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(2 * time.Millisecond)
	c.Touch(key)

	var after Summary
	ok, err = readJSON(filepath.Join(c.targetDir(key), summaryFileName), &after)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, after.Accessed.After(before.Accessed))
}

func TestKeyStringIsHex(t *testing.T) {
	k := testKey(0xab)
	s := KeyString(k)
	assert.Equal(t, "ab", s[:2])
	assert.Len(t, s, len(k)*2)
}
