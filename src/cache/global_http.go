package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPGlobalCache is a Global cache backed by a plain HTTP mirror:
// target manifests and artifact blobs are GET/PUT as individual
// objects under <baseURL>/<key-hex>/<file>. Grounded on the teacher's
// httpCache (src/cache/http_cache.go), but traded its single
// tar.gz-per-entry upload for individually addressable objects so
// DownloadArtifacts can fetch only the blobs a partial local cache is
// missing, matching this cache's manifest/blob split.
type HTTPGlobalCache struct {
	BaseURL    string
	UploadOnly bool
	client     *retryablehttp.Client
}

// NewHTTPGlobalCache returns an HTTPGlobalCache pointed at baseURL. The
// underlying client retries transient failures with backoff (§4.9:
// "Uploads are best-effort"); a quiet retryablehttp logger is used so
// retries don't spam ordinary build output.
func NewHTTPGlobalCache(baseURL string, uploadOnly bool) *HTTPGlobalCache {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	return &HTTPGlobalCache{BaseURL: baseURL, UploadOnly: uploadOnly, client: client}
}

func (c *HTTPGlobalCache) url(key Key, file string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, KeyString(key), file)
}

// Has reports whether the remote mirror has a summary recorded for key.
func (c *HTTPGlobalCache) Has(key Key) bool {
	if c.UploadOnly {
		return false
	}
	resp, err := c.client.Head(c.url(key, summaryFileName))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *HTTPGlobalCache) download(key Key, file, destDir string) error {
	if c.UploadOnly {
		return fmt.Errorf("cache: global cache is upload-only")
	}
	resp, err := c.client.Get(c.url(key, file))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cache: GET %s: status %d", c.url(key, file), resp.StatusCode)
	}
	out, err := os.OpenFile(filepath.Join(destDir, file), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func (c *HTTPGlobalCache) DownloadSummary(key Key, destDir string) error {
	return c.download(key, summaryFileName, destDir)
}

// DownloadManifest fetches both target.json and artifacts.json for key.
func (c *HTTPGlobalCache) DownloadManifest(key Key, destDir string) error {
	if err := c.download(key, targetFileName, destDir); err != nil {
		return err
	}
	return c.download(key, artifactsFileName, destDir)
}

func (c *HTTPGlobalCache) DownloadTests(key Key, destDir string) error {
	return c.download(key, testedFileName, destDir)
}

// DownloadArtifacts fetches each blob named in hashes (dest path ->
// content hash) into destDir, flat, named by hash — callers
// (TwoTier.populateFromGlobal, via LocalCache.Store) are responsible for
// placing them into the content-addressed blob store.
func (c *HTTPGlobalCache) DownloadArtifacts(key Key, hashes map[string]string, destDir string) error {
	if c.UploadOnly {
		return fmt.Errorf("cache: global cache is upload-only")
	}
	for _, hash := range hashes {
		resp, err := c.client.Get(fmt.Sprintf("%s/blobs/%s", c.BaseURL, hash))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("cache: GET blob %s: status %d", hash, resp.StatusCode)
		}
		out, err := os.OpenFile(filepath.Join(destDir, hash), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			resp.Body.Close()
			return err
		}
		_, err = io.Copy(out, resp.Body)
		resp.Body.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *HTTPGlobalCache) upload(key Key, file string, body []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPut, c.url(key, file), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("cache: PUT %s: status %d", c.url(key, file), resp.StatusCode)
	}
	return nil
}

func (c *HTTPGlobalCache) UploadSummary(key Key, srcDir string) error {
	return c.uploadFile(key, summaryFileName, srcDir)
}

func (c *HTTPGlobalCache) UploadManifest(key Key, srcDir string) error {
	return c.uploadFile(key, targetFileName, srcDir)
}

func (c *HTTPGlobalCache) UploadTests(key Key, srcDir string) error {
	return c.uploadFile(key, testedFileName, srcDir)
}

func (c *HTTPGlobalCache) uploadFile(key Key, file, srcDir string) error {
	data, err := os.ReadFile(filepath.Join(srcDir, file))
	if err != nil {
		return err
	}
	return c.upload(key, file, data)
}

// UploadArtifacts uploads every blob in artifacts (reading content from
// srcRoot/<dest>) plus the artifacts.json manifest itself, skipping
// blobs the caller has no readable source for (best-effort, per §4.9).
func (c *HTTPGlobalCache) UploadArtifacts(key Key, artifacts ArtifactManifest, srcRoot string) error {
	manifestJSON, err := json.Marshal(artifacts)
	if err != nil {
		return err
	}
	if err := c.upload(key, artifactsFileName, manifestJSON); err != nil {
		return err
	}
	for dest, entry := range artifacts {
		data, err := os.ReadFile(filepath.Join(srcRoot, dest))
		if err != nil {
			log.Warning("skipping upload of %s: %s", dest, err)
			continue
		}
		req, err := retryablehttp.NewRequest(http.MethodPut, fmt.Sprintf("%s/blobs/%s", c.BaseURL, entry.Hash), bytes.NewReader(data))
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			log.Warning("failed to upload blob %s: %s", entry.Hash, err)
			continue
		}
		resp.Body.Close()
	}
	return nil
}
