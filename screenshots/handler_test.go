package screenshots

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debian-appstream/dep11gen/component"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchAllDownloadsAndThumbnails(t *testing.T) {
	img := samplePNG(t, 2000, 1125)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))
	defer ts.Close()

	dir := t.TempDir()
	h := NewHandler(dir, "https://media.example.com")
	cpt := &component.Component{Screenshots: []component.Screenshot{
		{Default: true, SourceURL: ts.URL + "/shot.png"},
	}}

	h.FetchAll(cpt, "main", "org/example/foo/abc123")

	if cpt.HasIgnoreReason() {
		t.Fatalf("unexpected hints: %+v", cpt.Hints)
	}
	shot := cpt.Screenshots[0]
	if shot.SourceWidth != 2000 || shot.SourceHeight != 1125 {
		t.Errorf("authoritative dimensions not recorded: %+v", shot)
	}
	if shot.SourceURL == ts.URL+"/shot.png" {
		t.Error("expected source URL to be rewritten to pool-relative path")
	}
	if len(shot.Thumbnails) != 4 {
		t.Fatalf("expected 4 thumbnails, got %d", len(shot.Thumbnails))
	}

	root := filepath.Join(dir, "main", "org/example/foo/abc123", "screenshots")
	if _, err := os.Stat(filepath.Join(root, "source", "scr-0.png")); err != nil {
		t.Errorf("expected original under screenshots/source/scr-0.png: %v", err)
	}
	if !strings.Contains(shot.SourceURL, "/screenshots/source/scr-0.png") {
		t.Errorf("expected source URL to reference screenshots/source/scr-0.png, got %q", shot.SourceURL)
	}
	for _, thumb := range shot.Thumbnails {
		sizeDir := fmt.Sprintf("%dx%d", thumb.Width, thumb.Height)
		want := filepath.Join(root, sizeDir, "scr-0.png")
		if _, err := os.Stat(want); err != nil {
			t.Errorf("expected thumbnail at %s: %v", want, err)
		}
		wantSuffix := "/screenshots/" + sizeDir + "/scr-0.png"
		if !strings.Contains(thumb.URL, wantSuffix) {
			t.Errorf("expected thumbnail URL to contain %q, got %q", wantSuffix, thumb.URL)
		}
	}
}

func TestFetchAllDownloadErrorIsSkippedNotFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	dir := t.TempDir()
	h := NewHandler(dir, "https://media.example.com")
	cpt := &component.Component{Screenshots: []component.Screenshot{
		{SourceURL: ts.URL + "/missing.png"},
	}}

	h.FetchAll(cpt, "main", "gid")

	found := false
	for _, hint := range cpt.Hints {
		if hint.Tag == "screenshot-download-error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected screenshot-download-error hint, got %+v", cpt.Hints)
	}
}

func TestFetchAllSkipsEmptySourceURL(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, "https://media.example.com")
	cpt := &component.Component{Screenshots: []component.Screenshot{{SourceURL: ""}}}

	h.FetchAll(cpt, "main", "gid")

	if len(cpt.Hints) != 0 {
		t.Errorf("expected no hints for empty source URL, got %+v", cpt.Hints)
	}
}
