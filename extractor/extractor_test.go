package extractor

import (
	"os"
	"testing"

	"github.com/debian-appstream/dep11gen/component"
	"github.com/debian-appstream/dep11gen/icons"
)

type fakeSource struct {
	files map[string][]byte
}

func (s *fakeSource) List() []string {
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	return names
}

func (s *fakeSource) Has(name string) bool { _, ok := s.files[name]; return ok }

func (s *fakeSource) Extract(name string) ([]byte, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

type noopIconFetcher struct{ calls int }

func (f *noopIconFetcher) FetchIconFor(cpt *component.Component, pkg icons.PackageSource, archiveComponent, gid, pkgName string) {
	f.calls++
}

type noopScreenshots struct{ calls int }

func (f *noopScreenshots) FetchAll(cpt *component.Component, archiveComponent, gid string) {
	f.calls++
}

type fakeStore struct {
	pkid string
	cpts []*component.Component
	err  error
}

func (s *fakeStore) PutComponents(pkid string, cpts []*component.Component) error {
	s.pkid = pkid
	s.cpts = cpts
	return s.err
}

const sampleXML = `<?xml version="1.0"?>
<component type="desktop">
  <id>com.example.Foo</id>
  <name>Foo</name>
  <summary>A tool</summary>
</component>`

const sampleDesktop = "[Desktop Entry]\nType=Application\nName=Foo\nIcon=foo\n"

func TestProcessPkgPairsXMLWithDesktop(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/com.example.Foo.xml":       []byte(sampleXML),
		"usr/share/applications/com.example.Foo.desktop": []byte(sampleDesktop),
	}}
	store := &fakeStore{}
	icon := &noopIconFetcher{}
	shots := &noopScreenshots{}
	e := &Extractor{SuiteName: "stable", ArchiveComponent: "main", Store: store, IconFetcher: icon, Screenshots: shots}

	cpts, err := e.Process(Package{Name: "foo", Version: "1.0", Architecture: "amd64", Filename: "foo_1.0_amd64.deb"}, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cpts) != 1 {
		t.Fatalf("expected 1 component, got %d", len(cpts))
	}
	cpt := cpts[0]
	if cpt.ID != "com.example.Foo" || cpt.Kind != component.KindDesktopApp {
		t.Errorf("unexpected component: %+v", cpt)
	}
	if cpt.Name["C"] != "Foo" {
		t.Errorf("expected desktop entry data merged, got Name=%+v", cpt.Name)
	}
	if icon.calls != 1 {
		t.Errorf("expected icon fetch once, got %d", icon.calls)
	}
	if store.pkid != "foo/1.0/amd64" {
		t.Errorf("unexpected pkid %q", store.pkid)
	}
}

func TestProcessPropagatesStoreError(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/com.example.Foo.xml": []byte(sampleXML),
	}}
	wantErr := os.ErrClosed
	store := &fakeStore{err: wantErr}
	e := &Extractor{Store: store}

	_, err := e.Process(Package{Name: "foo", Version: "1.0", Architecture: "amd64"}, src)
	if err != wantErr {
		t.Fatalf("expected Process to surface the store's error, got %v", err)
	}
}

func TestProcessPkgMissingDesktopFile(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/com.example.Foo.xml": []byte(sampleXML),
	}}
	e := &Extractor{SuiteName: "stable", ArchiveComponent: "main"}

	cpts := e.processPkg(Package{Name: "foo", Version: "1.0", Architecture: "amd64"}, src)

	if len(cpts) != 1 {
		t.Fatalf("expected 1 component, got %d", len(cpts))
	}
	if !cpts[0].HasIgnoreReason() {
		t.Error("expected missing-desktop-file to be an ignore reason")
	}
}

func TestProcessPkgNoIDMetainfoIsRetainedWithHint(t *testing.T) {
	noIDXML := `<?xml version="1.0"?>
<component type="desktop">
  <name>Foo</name>
  <summary>A tool</summary>
</component>`
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/foo.xml": []byte(noIDXML),
	}}
	e := &Extractor{}

	cpts := e.processPkg(Package{Name: "foo", Version: "1.0"}, src)

	if len(cpts) != 1 {
		t.Fatalf("expected the id-less component to be retained, got %d components", len(cpts))
	}
	if !cpts[0].HasIgnoreReason() {
		t.Error("expected metainfo-no-id to be an ignore reason")
	}
	found := false
	for _, h := range cpts[0].Hints {
		if h.Tag == "metainfo-no-id" {
			found = true
		}
	}
	if !found {
		t.Error("expected metainfo-no-id hint to be recorded on the retained component")
	}
}

func TestProcessPkgEmptyFilelistIsFatal(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{}}
	e := &Extractor{}

	cpts := e.processPkg(Package{Name: "foo", Version: "1.0"}, src)

	if len(cpts) != 1 || !cpts[0].HasIgnoreReason() {
		t.Fatalf("expected single deb-filelist-error component, got %+v", cpts)
	}
}

func TestProcessPkgNoDisplayWithoutXMLDroppedSilently(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/applications/bar.desktop": []byte("[Desktop Entry]\nType=Application\nName=Bar\nNoDisplay=true\n"),
	}}
	e := &Extractor{}

	cpts := e.processPkg(Package{Name: "bar", Version: "1.0"}, src)

	if len(cpts) != 0 {
		t.Fatalf("expected no components, got %+v", cpts)
	}
}

func TestProcessPkgCacheHitSkipsMediaWork(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/com.example.Foo.xml":          []byte(sampleXML),
		"usr/share/applications/com.example.Foo.desktop": []byte(sampleDesktop),
	}}
	icon := &noopIconFetcher{}
	cache := fakeCache{yaml: "Package: foo\n"}
	e := &Extractor{Cache: cache, IconFetcher: icon}

	cpts := e.processPkg(Package{Name: "foo", Version: "1.0"}, src)

	if len(cpts) != 1 {
		t.Fatalf("expected 1 component, got %d", len(cpts))
	}
	if icon.calls != 0 {
		t.Errorf("expected icon fetch to be skipped on cache hit, got %d calls", icon.calls)
	}
}

func TestProcessPkgCacheHitDifferentPackageIsDuplicate(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"usr/share/appdata/com.example.Foo.xml":          []byte(sampleXML),
		"usr/share/applications/com.example.Foo.desktop": []byte(sampleDesktop),
	}}
	cache := fakeCache{yaml: "Package: other-pkg\n"}
	e := &Extractor{Cache: cache}

	cpts := e.processPkg(Package{Name: "foo", Version: "1.0"}, src)

	if len(cpts) != 1 || !cpts[0].HasIgnoreReason() {
		t.Fatalf("expected metainfo-duplicate-id ignore reason, got %+v", cpts)
	}
}

type fakeCache struct {
	yaml string
}

func (c fakeCache) GetMetadataYAML(gid string) (string, bool) {
	if c.yaml == "" {
		return "", false
	}
	return c.yaml, true
}
