// ABOUTME: Artwork cache for track metadata images
// ABOUTME: Downloads the artwork URL from server/state metadata into a local cache directory
package artwork

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MaxSize bounds a single artwork download
const MaxSize = 10 << 20

// Downloader manages artwork downloads
type Downloader struct {
	cacheDir string
	client   *http.Client

	mu          sync.Mutex
	currentURL  string
	currentPath string
}

// NewDownloader creates a downloader caching under dir, or the temp dir when empty
func NewDownloader(dir string) (*Downloader, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sendspin-artwork")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Downloader{
		cacheDir: dir,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Download fetches artwork from url into the cache and returns the file path.
// An empty url clears the current artwork.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	if url == "" {
		d.setCurrent("", "")
		return "", nil
	}

	cachePath := d.pathFor(url)

	if _, err := os.Stat(cachePath); err == nil {
		d.setCurrent(url, cachePath)
		return cachePath, nil
	}

	log.Printf("Downloading artwork: %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("bad artwork url: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artwork download failed: HTTP %d", resp.StatusCode)
	}

	// Written to a temp name first so a partial file is never a cache hit
	tmp, err := os.CreateTemp(d.cacheDir, "partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, MaxSize+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > MaxSize {
		err = fmt.Errorf("artwork larger than %d bytes", MaxSize)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save artwork: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save artwork: %w", err)
	}

	log.Printf("Artwork saved: %s", cachePath)
	d.setCurrent(url, cachePath)
	return cachePath, nil
}

// Claim records url as the current artwork and reports whether it changed.
// Metadata repeats on every progress update; only a changed url needs a download.
func (d *Downloader) Claim(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if url == d.currentURL {
		return false
	}
	d.currentURL = url
	return true
}

// CurrentPath returns the path to the current artwork
func (d *Downloader) CurrentPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentPath
}

func (d *Downloader) setCurrent(url, path string) {
	d.mu.Lock()
	d.currentURL = url
	d.currentPath = path
	d.mu.Unlock()
}

// pathFor derives the cache file name from the url hash
func (d *Downloader) pathFor(url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(d.cacheDir, fmt.Sprintf("%x%s", hash[:8], getExtension(url)))
}

// getExtension extracts file extension from URL
func getExtension(url string) string {
	url = strings.Split(url, "?")[0]

	ext := filepath.Ext(url)
	if ext == "" || len(ext) > 5 || strings.Contains(ext, "/") {
		ext = ".jpg"
	}

	return ext
}

// Cleanup removes the cache directory
func (d *Downloader) Cleanup() error {
	return os.RemoveAll(d.cacheDir)
}
