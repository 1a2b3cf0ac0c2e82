// Package extractor implements the per-package orchestration (§4.8): reads
// a package's metainfo and desktop-entry candidates, builds Components,
// consults the cache for already-processed source data, and dispatches
// icon and screenshot fetching for everything that survives.
package extractor

import (
	"path"
	"strings"

	"github.com/debian-appstream/dep11gen/component"
	"github.com/debian-appstream/dep11gen/icons"
	"github.com/debian-appstream/dep11gen/metainfo"
)

// PackageSource is the subset of debpkg.Reader the extractor needs: the
// full payload path list plus content extraction, shared with icons.PackageSource.
type PackageSource interface {
	List() []string
	Has(name string) bool
	Extract(name string) ([]byte, error)
}

// IconFetcher resolves and renders a component's icon. Satisfied by
// (*icons.Handler).FetchIconFor.
type IconFetcher interface {
	FetchIconFor(cpt *component.Component, pkg icons.PackageSource, archiveComponent, gid, pkgName string)
}

// ScreenshotFetcher downloads and renders a component's screenshots.
// Satisfied by (*screenshots.Handler).FetchAll.
type ScreenshotFetcher interface {
	FetchAll(cpt *component.Component, archiveComponent, gid string)
}

// MetadataLookup answers whether a gid's cached metadata YAML already
// exists, so the extractor can skip media work it already did.
type MetadataLookup interface {
	GetMetadataYAML(gid string) (yamlDoc string, ok bool)
}

// ComponentStore receives the final per-package component list. A non-nil
// error is a cache.CacheError and is fatal to the package (§7).
type ComponentStore interface {
	PutComponents(pkid string, cpts []*component.Component) error
}

// Package is the minimal package-level information the extractor needs
// beyond the payload itself.
type Package struct {
	Name         string
	Version      string
	Architecture string
	Filename     string
	// Description is the package's own (translated) short description,
	// used as a last-resort Component.Description when no metainfo
	// supplied one (§4.8 final rule).
	Description component.LocaleString
}

func (p Package) toComponentPackage() component.Package {
	return component.Package{Name: p.Name, Version: p.Version, Architecture: p.Architecture}
}

func (p Package) pkid() string {
	return p.Name + "/" + p.Version + "/" + p.Architecture
}

// Extractor runs the §4.8 per-package algorithm for one archive-component
// of one suite. Per the shared-nothing scheduling model (§5), each worker
// owns exactly one Extractor at a time.
type Extractor struct {
	SuiteName        string
	ArchiveComponent string

	Cache       MetadataLookup
	Store       ComponentStore
	IconFetcher IconFetcher
	Screenshots ScreenshotFetcher
}

// Process runs the full per-package algorithm and writes the resulting
// component list (including any single ignored placeholder) to the Store.
// A non-nil error is fatal to this package (§7) and the returned components
// must not be treated as recorded.
func (e *Extractor) Process(pkg Package, src PackageSource) ([]*component.Component, error) {
	cpts := e.processPkg(pkg, src)
	if e.Store != nil {
		if err := e.Store.PutComponents(pkg.pkid(), cpts); err != nil {
			return cpts, err
		}
	}
	return cpts, nil
}

func (e *Extractor) processPkg(pkg Package, src PackageSource) []*component.Component {
	filelist := src.List()
	if len(filelist) == 0 {
		cpt := &component.Component{Package: pkg.toComponentPackage()}
		cpt.AddHint("deb-filelist-error", map[string]string{"pkg_fname": path.Base(pkg.Filename)})
		return []*component.Component{cpt}
	}

	desktopRaw := map[string]desktopCandidate{}
	var xmlFiles []string
	for _, f := range filelist {
		switch {
		case strings.HasPrefix(f, "usr/share/applications/") && strings.HasSuffix(f, ".desktop"):
			id := path.Base(f)
			data, err := src.Extract(f)
			if err != nil {
				desktopRaw[id] = desktopCandidate{path: f, err: err}
				continue
			}
			desktopRaw[id] = desktopCandidate{path: f, content: string(data)}
		case strings.HasPrefix(f, "usr/share/appdata/") && strings.HasSuffix(f, ".xml"):
			xmlFiles = append(xmlFiles, f)
		}
	}

	componentsByID := map[string]*component.Component{}
	order := []string{}

	for _, xmlPath := range xmlFiles {
		data, err := src.Extract(xmlPath)
		if err != nil {
			cpt := &component.Component{Package: pkg.toComponentPackage()}
			cpt.AddHint("deb-extract-error", map[string]string{
				"fname": xmlPath, "pkg_fname": path.Base(pkg.Filename), "error": err.Error(),
			})
			return []*component.Component{cpt}
		}
		xmlText := string(data)

		cpt := &component.Component{Package: pkg.toComponentPackage()}
		if err := metainfo.ParseAppstreamXML(cpt, xmlText); err != nil {
			cpt.AddHint("metainfo-parse-error", map[string]string{"fname": xmlPath, "error": err.Error()})
		}
		if cpt.ID == "" {
			// No id to key this component on, but its hints must still
			// reach the cache/hints stream (§3: ignored, not discarded).
			// A synthetic key keyed on the source path keeps it distinct
			// from every real component id and from any other id-less
			// metainfo file in the same package.
			cpt.AddHint("metainfo-no-id", nil)
			key := "metainfo-no-id:" + xmlPath
			componentsByID[key] = cpt
			order = append(order, key)
			continue
		}

		cpt.SetSourceDataChecksumFromData(xmlText)

		if cpt.Kind == component.KindDesktopApp {
			desktopKey := cpt.ID
			if _, ok := desktopRaw[desktopKey]; !ok && !strings.HasSuffix(desktopKey, ".desktop") {
				desktopKey += ".desktop"
			}
			paired, ok := desktopRaw[desktopKey]
			if !ok {
				cpt.AddHint("missing-desktop-file", map[string]string{"cid": cpt.ID})
			} else if paired.err != nil {
				cpt.AddHint("deb-extract-error", map[string]string{
					"fname": paired.path, "pkg_fname": path.Base(pkg.Filename), "error": paired.err.Error(),
				})
			} else {
				metainfo.ParseDesktopEntry(cpt, paired.content, true)
				cpt.SetSourceDataChecksumFromData(xmlText + paired.content)
			}
			delete(desktopRaw, desktopKey)
		}

		componentsByID[cpt.ID] = cpt
		order = append(order, cpt.ID)
	}

	for id, raw := range desktopRaw {
		if raw.err != nil {
			continue
		}
		cpt := &component.Component{ID: id, Package: pkg.toComponentPackage()}
		if metainfo.ParseDesktopEntry(cpt, raw.content, false) {
			cpt.SetSourceDataChecksumFromData(raw.content)
			componentsByID[id] = cpt
			order = append(order, id)
		}
		// else: silently invisible (NoDisplay with no paired XML), dropped.
	}

	result := make([]*component.Component, 0, len(order))
	for _, id := range order {
		cpt := componentsByID[id]
		result = append(result, cpt)

		if cpt.HasIgnoreReason() {
			continue
		}

		gid := cpt.GlobalID()
		if gid == "" {
			continue
		}

		if e.Cache != nil {
			if existing, ok := e.Cache.GetMetadataYAML(gid); ok {
				if strings.Contains(existing, "Package: "+pkg.Name+"\n") {
					continue
				}
				cpt.AddHint("metainfo-duplicate-id", map[string]string{"cid": cpt.ID})
				continue
			}
		}

		if e.IconFetcher != nil {
			e.IconFetcher.FetchIconFor(cpt, src, e.ArchiveComponent, gid, pkg.Name)
		}
		if cpt.Kind == component.KindDesktopApp && !cpt.HasIcon() {
			cpt.AddHint("gui-app-without-icon", map[string]string{"cid": cpt.ID})
		} else if e.Screenshots != nil {
			e.Screenshots.FetchAll(cpt, e.ArchiveComponent, gid)
		}

		if len(cpt.Description) == 0 && !cpt.HasIgnoreReason() && len(pkg.Description) > 0 {
			cpt.Description = pkg.Description
			cpt.AddHint("description-from-package", nil)
		}

		cpt.Finalize()
	}

	return result
}

type desktopCandidate struct {
	path    string
	content string
	err     error
}
