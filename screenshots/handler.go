// Package screenshots implements ScreenshotHandler (§4.7): downloads each
// component's source screenshots over HTTPS, reads their authoritative
// dimensions, renders a fixed thumbnail set, and rewrites the screenshot's
// source URL to its canonical pool-relative path.
package screenshots

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/debian-appstream/dep11gen/component"
)

// thumbnailSizes is the fixed set of output dimensions (§4.7).
var thumbnailSizes = []struct{ W, H int }{
	{1248, 702}, {752, 423}, {624, 351}, {112, 63},
}

const fetchTimeout = 30 * time.Second

const extraCABundle = "/etc/ssl/ca-global"

// Handler downloads and renders a component's screenshots into the media
// pool, rewriting each Screenshot's SourceURL to the pool-relative path.
type Handler struct {
	Client    *http.Client
	MediaRoot string // <export>/media
	BaseURL   string // public URL prefix components' pool-relative URLs resolve under
}

// NewHandler builds a Handler with a 30s-timeout client trusting the system
// root pool plus an optional extra CA bundle at /etc/ssl/ca-global.
func NewHandler(mediaRoot, baseURL string) *Handler {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if extra, err := os.ReadFile(extraCABundle); err == nil {
		pool.AppendCertsFromPEM(extra)
	}

	client := &http.Client{
		Timeout: fetchTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
	return &Handler{Client: client, MediaRoot: mediaRoot, BaseURL: baseURL}
}

// FetchAll downloads and renders every screenshot on cpt with a non-empty
// source URL, mutating cpt.Screenshots in place. A download or decode
// failure on one screenshot emits screenshot-download-error and skips only
// that screenshot; the rest still proceed.
func (h *Handler) FetchAll(cpt *component.Component, archiveComponent, gid string) {
	for i := range cpt.Screenshots {
		shot := &cpt.Screenshots[i]
		if shot.SourceURL == "" {
			continue
		}
		if err := h.fetchOne(shot, archiveComponent, gid, i); err != nil {
			cpt.AddHint("screenshot-download-error", map[string]string{
				"url": shot.SourceURL, "error": err.Error(),
			})
		}
	}
}

func (h *Handler) fetchOne(shot *component.Screenshot, archiveComponent, gid string, index int) error {
	data, err := h.download(shot.SourceURL)
	if err != nil {
		return err
	}

	width, height, err := nativeSize(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	shot.SourceWidth = width
	shot.SourceHeight = height

	img, _, err := decodeImage(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	root := filepath.Join(h.MediaRoot, archiveComponent, gid, "screenshots")
	name := fmt.Sprintf("scr-%d.png", index)

	var thumbs []component.Thumbnail
	for _, size := range thumbnailSizes {
		sizeDir := fmt.Sprintf("%dx%d", size.W, size.H)
		dir := filepath.Join(root, sizeDir)
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err != nil {
			resized := imaging.Fit(img, size.W, size.H, imaging.Lanczos)
			var out bytes.Buffer
			if err := encodePNG(&out, resized); err != nil {
				return fmt.Errorf("encode %dx%d: %w", size.W, size.H, err)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			if err := os.WriteFile(dest, out.Bytes(), 0644); err != nil {
				return err
			}
		}
		thumbs = append(thumbs, component.Thumbnail{
			URL:    poolURL(archiveComponent, gid, sizeDir, name),
			Width:  size.W,
			Height: size.H,
		})
	}

	sourceDir := filepath.Join(root, "source")
	sourceDest := filepath.Join(sourceDir, name)
	if _, err := os.Stat(sourceDest); err != nil {
		var out bytes.Buffer
		if err := encodePNG(&out, img); err != nil {
			return fmt.Errorf("encode source: %w", err)
		}
		if err := os.MkdirAll(sourceDir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(sourceDest, out.Bytes(), 0644); err != nil {
			return err
		}
	}

	shot.SourceURL = poolURL(archiveComponent, gid, "source", name)
	shot.Thumbnails = thumbs
	return nil
}

func poolURL(archiveComponent, gid, sizeDir, name string) string {
	return fmt.Sprintf("%s/%s/screenshots/%s/%s", archiveComponent, gid, sizeDir, name)
}

func (h *Handler) download(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
