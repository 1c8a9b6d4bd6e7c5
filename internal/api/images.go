package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"
)

const maxImageBytes = 10 << 20

// ImageCache downloads recipe photos, scales them down and keeps a
// local copy so the UI does not hotlink the source site. Cached files
// are keyed by a hash of the source URL and served under /images/.
type ImageCache struct {
	dir        string
	httpClient *http.Client
}

// NewImageCache creates an ImageCache rooted at dir, creating the
// directory if needed.
func NewImageCache(dir string) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	return &ImageCache{
		dir:        dir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// CacheRemote fetches the image at url, resizes it and stores it in the
// cache. It returns the web path of the cached copy. A second call for
// the same url returns the existing copy without refetching.
func (ic *ImageCache) CacheRemote(ctx context.Context, url string) (string, error) {
	hash := hashURL(url)
	name := hash + ".jpg"
	path := filepath.Join(ic.dir, name)

	if _, err := os.Stat(path); err == nil {
		return "/images/" + name, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	img = resize.Resize(800, 0, img, resize.Lanczos3)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, nil); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	return "/images/" + name, nil
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
