package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// TwoTier sequences a Local cache lookup, falling back to a Global
// cache on a local miss (§4.9: "on hit it populates the local cache and
// then proceeds as if local-hit"). Global may be nil if no remote
// mirror is configured.
type TwoTier struct {
	Local  Local
	Global Global
}

// Lookup performs the local-then-global lookup sequence, materializing
// artifacts into destRoot on any hit. It returns ok=false only if
// neither tier has a complete entry for key.
func (t *TwoTier) Lookup(key Key, destRoot string) (ArtifactManifest, bool, error) {
	if manifest, ok, err := t.Local.Fetch(key, destRoot); err != nil {
		return nil, false, err
	} else if ok {
		t.Local.Touch(key)
		return manifest, true, nil
	}
	if t.Global == nil || !t.Global.Has(key) {
		return nil, false, nil
	}
	manifest, err := t.populateFromGlobal(key, destRoot)
	if err != nil {
		log.Warning("global cache hit for %s but population failed: %s", KeyString(key), err)
		return nil, false, nil
	}
	return manifest, true, nil
}

// populateFromGlobal downloads a global-cache entry into a scratch
// directory, stores it locally (so subsequent lookups hit the local
// tier), then fetches it back out into destRoot.
func (t *TwoTier) populateFromGlobal(key Key, destRoot string) (ArtifactManifest, error) {
	scratch, err := os.MkdirTemp("", "ybt-global-cache-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	if err := t.Global.DownloadSummary(key, scratch); err != nil {
		return nil, fmt.Errorf("downloading summary: %w", err)
	}
	if err := t.Global.DownloadManifest(key, scratch); err != nil {
		return nil, fmt.Errorf("downloading manifest: %w", err)
	}

	artifactsPath := filepath.Join(scratch, artifactsFileName)
	var manifest ArtifactManifest
	if ok, err := readJSON(artifactsPath, &manifest); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("global cache entry for %s has no artifacts manifest", KeyString(key))
	}
	hashes := make(map[string]string, len(manifest))
	for dest, entry := range manifest {
		hashes[dest] = entry.Hash
	}
	blobDir := filepath.Join(scratch, "blobs")
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, err
	}
	if err := t.Global.DownloadArtifacts(key, hashes, blobDir); err != nil {
		return nil, fmt.Errorf("downloading artifacts: %w", err)
	}

	var targetManifest TargetManifest
	if ok, err := readJSON(filepath.Join(scratch, targetFileName), &targetManifest); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("global cache entry for %s has no target manifest", KeyString(key))
	}

	// DownloadArtifacts names blobs by content hash; Store expects them
	// laid out by destination path, so stage one level of indirection
	// before handing srcRoot to Store.
	staged := filepath.Join(scratch, "staged")
	for dest, entry := range manifest {
		to := filepath.Join(staged, dest)
		if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
			return nil, err
		}
		if err := os.Link(filepath.Join(blobDir, entry.Hash), to); err != nil {
			return nil, fmt.Errorf("staging downloaded blob for %s: %w", dest, err)
		}
	}

	if err := t.Local.Store(key, targetManifest, manifest, staged, 0); err != nil {
		return nil, fmt.Errorf("populating local cache: %w", err)
	}
	return t.Local.Fetch(key, destRoot)
}
