// Command dep11gen scans a Debian archive and produces a DEP-11/AppStream
// catalog for it (§6: CLI surface). Subcommand dispatch and colorized
// status output follow the same flag-parsing and summary-line texture as
// the reference `apt-repo-builder` tree's own `main.go`.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/debian-appstream/dep11gen/archive"
	"github.com/debian-appstream/dep11gen/cache"
	"github.com/debian-appstream/dep11gen/catalog"
	"github.com/debian-appstream/dep11gen/config"
	"github.com/debian-appstream/dep11gen/debpkg"
	"github.com/debian-appstream/dep11gen/extractor"
	"github.com/debian-appstream/dep11gen/icons"
	"github.com/debian-appstream/dep11gen/icontheme"
	"github.com/debian-appstream/dep11gen/scheduler"
	"github.com/debian-appstream/dep11gen/screenshots"
)

const (
	exitOK          = 0
	exitArgError    = 1
	exitInitFailed  = 2
	exitWorkerError = 5
)

var verbose = os.Getenv("DEBUG") == "1"

var (
	errColor = color.New(color.FgRed, color.Bold)
	okColor  = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitArgError
	}

	switch args[0] {
	case "process":
		return cmdProcess(args[1:])
	case "cleanup":
		return cmdCleanup(args[1:])
	case "remove-processed":
		return cmdRemoveProcessed(args[1:])
	case "forget":
		return cmdForget(args[1:])
	case "update-reports":
		fmt.Fprintln(os.Stderr, "update-reports: not implemented, out of scope")
		return exitOK
	default:
		errColor.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		usage()
		return exitArgError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: dep11gen <subcommand> [args]

Subcommands:
  process <confdir> <suite>            scan the archive and populate the cache and catalog
  cleanup <confdir>                     expire cache/media entries for packages no longer present
  remove-processed <confdir> <suite>    forget every processed package in a suite, for a clean re-run
  forget <confdir> <pkid>               drop one package's cache entry
  update-reports <confdir> <suite>      not implemented, out of scope`)
}

func loadConfig(confdir string) (*config.Config, int) {
	cfg, err := config.Load(filepath.Join(confdir, "dep11-config.yml"))
	if err != nil {
		errColor.Fprintf(os.Stderr, "%v\n", err)
		return nil, exitInitFailed
	}
	return cfg, exitOK
}

func cmdProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	concurrency := fs.Int("concurrency", 4, "number of packages processed concurrently")
	if err := fs.Parse(args); err != nil {
		return exitArgError
	}
	rest := fs.Args()
	if len(rest) != 2 {
		errColor.Fprintln(os.Stderr, "usage: dep11gen process <confdir> <suite>")
		return exitArgError
	}
	confdir, suiteName := rest[0], rest[1]

	cfg, code := loadConfig(confdir)
	if code != exitOK {
		return code
	}
	suite, ok := cfg.Suites[suiteName]
	if !ok {
		errColor.Fprintf(os.Stderr, "unknown suite %q\n", suiteName)
		return exitArgError
	}

	anyFailure := false
	for _, archiveComponent := range suite.Components {
		for _, arch := range suite.Architectures {
			if err := processOne(cfg, suiteName, archiveComponent, arch, suite, *concurrency); err != nil {
				errColor.Fprintf(os.Stderr, "%s/%s/%s: %v\n", suiteName, archiveComponent, arch, err)
				anyFailure = true
			}
		}
	}
	if anyFailure {
		return exitWorkerError
	}
	return exitOK
}

func processOne(cfg *config.Config, suiteName, archiveComponent, arch string, suite config.Suite, concurrency int) error {
	infoColor.Fprintf(os.Stderr, "processing %s/%s/%s\n", suiteName, archiveComponent, arch)

	pkgIndex := &archive.PackageIndex{
		ArchiveRoot: cfg.ArchiveRoot, Suite: suiteName, Component: archiveComponent, Arch: arch,
	}
	if err := pkgIndex.Load(); err != nil {
		return fmt.Errorf("loading package index: %w", err)
	}

	themeOrder := defaultThemeOrderFor(suite)
	contentsIdx := &archive.ContentsIndex{
		ArchiveRoot: cfg.ArchiveRoot, Suite: suiteName, Component: archiveComponent, Arch: arch,
		Themes: themeOrder,
	}
	if err := contentsIdx.Load(); err != nil {
		infoColor.Fprintf(os.Stderr, "no Contents index for %s/%s/%s, icon search limited to in-package: %v\n",
			suiteName, archiveComponent, arch, err)
		contentsIdx = nil
	}

	ts := buildThemeSource(cfg.ArchiveRoot, pkgIndex, contentsIdx, themeOrder)

	sizes, err := parseIconSizes(cfg.IconSizes)
	if err != nil {
		return err
	}

	mediaRoot := filepath.Join(cfg.ExportDir, "media")
	var finder icons.Finder = icons.NoopFinder{}
	if ts != nil {
		finder = &icons.ContentsFinder{Source: ts, ThemeOrder: themeOrder}
	}
	iconHandler := icons.NewHandler(sizes, mediaRoot, finder)
	iconHandler.ThemeSource = ts
	iconHandler.ThemeOrder = themeOrder

	screenshotHandler := screenshots.NewHandler(mediaRoot, cfg.MediaBaseURL)

	jobs := buildJobs(cfg.ArchiveRoot, pkgIndex)

	sched := &scheduler.Scheduler{
		CacheDir:    filepath.Join(cfg.CacheDir, suiteName, archiveComponent),
		MediaRoot:   mediaRoot,
		Concurrency: concurrency,
		NewExtractor: func(c *cache.Cache) *extractor.Extractor {
			return &extractor.Extractor{
				SuiteName: suiteName, ArchiveComponent: archiveComponent,
				Cache: c, Store: c, IconFetcher: iconHandler, Screenshots: screenshotHandler,
			}
		},
	}

	results, err := sched.Run(context.Background(), jobs)
	if err != nil {
		return fmt.Errorf("running scheduler: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Status != scheduler.StatusOK {
			failed++
			if verbose {
				errColor.Fprintf(os.Stderr, "  %s: %s (%s)\n", r.Pkid, r.Status, r.Message)
			}
		}
	}
	okColor.Fprintf(os.Stderr, "  %d/%d packages processed\n", len(results)-failed, len(results))

	if err := writeCatalog(cfg, suiteName, archiveComponent, arch, suite, pkgIndex, mediaRoot, sizes); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d package(s) failed extraction", failed)
	}
	return nil
}

func writeCatalog(cfg *config.Config, suiteName, archiveComponent, arch string, suite config.Suite,
	pkgIndex *archive.PackageIndex, mediaRoot string, sizes []int) error {

	c, err := cache.Open(filepath.Join(cfg.CacheDir, suiteName, archiveComponent), mediaRoot)
	if err != nil {
		return err
	}
	defer c.Close()

	pkids := make([]string, 0, len(pkgIndex.Packages()))
	for _, desc := range pkgIndex.Packages() {
		pkids = append(pkids, desc.PkID())
	}
	sort.Strings(pkids)

	dataDir := filepath.Join(cfg.ExportDir, "data", suiteName, archiveComponent)
	hintsDir := filepath.Join(cfg.ExportDir, "hints", suiteName, archiveComponent)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(hintsDir, 0755); err != nil {
		return err
	}

	header := catalog.NewHeader(cfg.RepositoryName, suiteName, archiveComponent, cfg.MediaBaseURL, suite.DataPriority, time.Now())

	componentsPath := filepath.Join(dataDir, "Components-"+arch+".yml.gz")
	cf, err := os.Create(componentsPath)
	if err != nil {
		return err
	}
	defer cf.Close()
	if err := catalog.WriteComponents(cf, header, pkids, c); err != nil {
		return err
	}

	hintsPath := filepath.Join(hintsDir, "DEP11Hints_"+arch+".yml.gz")
	hf, err := os.Create(hintsPath)
	if err != nil {
		return err
	}
	defer hf.Close()
	if err := catalog.WriteHints(hf, pkids, c); err != nil {
		return err
	}

	var gids []string
	for _, pkid := range pkids {
		if pkgGids, ok := c.GidsForPackage(pkid); ok {
			gids = append(gids, pkgGids...)
		}
	}
	for _, size := range sizes {
		tarPath := filepath.Join(dataDir, fmt.Sprintf("icons-%dx%d.tar.gz", size, size))
		tf, err := os.Create(tarPath)
		if err != nil {
			return err
		}
		err = catalog.WriteIconTarball(tf, mediaRoot, archiveComponent, size, gids)
		tf.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func cmdCleanup(args []string) int {
	if len(args) != 1 {
		errColor.Fprintln(os.Stderr, "usage: dep11gen cleanup <confdir>")
		return exitArgError
	}
	cfg, code := loadConfig(args[0])
	if code != exitOK {
		return code
	}

	anyFailure := false
	for suiteName, suite := range cfg.Suites {
		for _, archiveComponent := range suite.Components {
			for _, arch := range suite.Architectures {
				if err := cleanupOne(cfg, suiteName, archiveComponent, arch, suite); err != nil {
					errColor.Fprintf(os.Stderr, "%s/%s/%s: %v\n", suiteName, archiveComponent, arch, err)
					anyFailure = true
				}
			}
		}
	}
	if anyFailure {
		return exitWorkerError
	}
	return exitOK
}

func cleanupOne(cfg *config.Config, suiteName, archiveComponent, arch string, suite config.Suite) error {
	pkgIndex := &archive.PackageIndex{ArchiveRoot: cfg.ArchiveRoot, Suite: suiteName, Component: archiveComponent, Arch: arch}
	if err := pkgIndex.Load(); err != nil {
		return err
	}
	var valid []string
	for _, desc := range pkgIndex.Packages() {
		valid = append(valid, desc.PkID())
	}

	mediaRoot := filepath.Join(cfg.ExportDir, "media")
	c, err := cache.Open(filepath.Join(cfg.CacheDir, suiteName, archiveComponent), mediaRoot)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Expire(valid, archiveComponent)
}

func cmdRemoveProcessed(args []string) int {
	if len(args) != 2 {
		errColor.Fprintln(os.Stderr, "usage: dep11gen remove-processed <confdir> <suite>")
		return exitArgError
	}
	confdir, suiteName := args[0], args[1]
	cfg, code := loadConfig(confdir)
	if code != exitOK {
		return code
	}
	suite, ok := cfg.Suites[suiteName]
	if !ok {
		errColor.Fprintf(os.Stderr, "unknown suite %q\n", suiteName)
		return exitArgError
	}

	mediaRoot := filepath.Join(cfg.ExportDir, "media")
	for _, archiveComponent := range suite.Components {
		for _, arch := range suite.Architectures {
			pkgIndex := &archive.PackageIndex{ArchiveRoot: cfg.ArchiveRoot, Suite: suiteName, Component: archiveComponent, Arch: arch}
			if err := pkgIndex.Load(); err != nil {
				errColor.Fprintf(os.Stderr, "%s/%s/%s: %v\n", suiteName, archiveComponent, arch, err)
				return exitWorkerError
			}
			c, err := cache.Open(filepath.Join(cfg.CacheDir, suiteName, archiveComponent), mediaRoot)
			if err != nil {
				errColor.Fprintf(os.Stderr, "%v\n", err)
				return exitWorkerError
			}
			for _, desc := range pkgIndex.Packages() {
				c.Forget(desc.PkID())
			}
			c.Close()
		}
	}
	return exitOK
}

func cmdForget(args []string) int {
	if len(args) != 2 {
		errColor.Fprintln(os.Stderr, "usage: dep11gen forget <confdir> <pkid>")
		return exitArgError
	}
	cfg, code := loadConfig(args[0])
	if code != exitOK {
		return code
	}
	pkid := args[1]

	anyFailure := false
	for suiteName, suite := range cfg.Suites {
		for _, archiveComponent := range suite.Components {
			c, err := cache.Open(filepath.Join(cfg.CacheDir, suiteName, archiveComponent), filepath.Join(cfg.ExportDir, "media"))
			if err != nil {
				errColor.Fprintf(os.Stderr, "%v\n", err)
				anyFailure = true
				continue
			}
			err = c.Forget(pkid)
			c.Close()
			if err != nil {
				errColor.Fprintf(os.Stderr, "%s/%s: %v\n", suiteName, archiveComponent, err)
				anyFailure = true
			}
		}
	}
	if anyFailure {
		return exitWorkerError
	}
	okColor.Fprintf(os.Stderr, "forgot %s\n", pkid)
	return exitOK
}

func defaultThemeOrderFor(suite config.Suite) []string {
	order := []string{"hicolor"}
	if suite.UseIconTheme != "" && suite.UseIconTheme != "hicolor" {
		order = append(order, suite.UseIconTheme)
	}
	order = append(order, "Adwaita", "breeze")
	return order
}

func parseIconSizes(specs []string) ([]int, error) {
	sizes := make([]int, 0, len(specs))
	for _, spec := range specs {
		px, err := config.IconSizePixels(spec)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, px)
	}
	return sizes, nil
}

// buildJobs turns every package in pkgIndex into a scheduler.Job backed by
// a lazyDebSource that only reads and opens the .deb payload once a worker
// actually calls List/Has/Extract on it.
func buildJobs(archiveRoot string, pkgIndex *archive.PackageIndex) []scheduler.Job {
	names := make([]string, 0, len(pkgIndex.Packages()))
	for name := range pkgIndex.Packages() {
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]scheduler.Job, 0, len(names))
	for _, name := range names {
		desc := pkgIndex.Packages()[name]
		jobs = append(jobs, scheduler.Job{
			Package: extractor.Package{
				Name: desc.Name, Version: desc.Version, Architecture: desc.Architecture,
				Filename:    desc.Filename,
				Description: localeFromPlain(desc.Description),
			},
			Source: &lazyDebSource{path: filepath.Join(archiveRoot, desc.Filename)},
		})
	}
	return jobs
}

func localeFromPlain(s string) map[string]string {
	if s == "" {
		return nil
	}
	return map[string]string{"C": s}
}

// lazyDebSource opens its backing .deb file at most once, on first use,
// so building the full job list never reads every package payload eagerly.
type lazyDebSource struct {
	path   string
	reader *debpkg.Reader
	err    error
}

func (s *lazyDebSource) ensure() error {
	if s.reader != nil || s.err != nil {
		return s.err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.err = err
		return err
	}
	r, err := debpkg.Open(s.path, data)
	if err != nil {
		s.err = err
		return err
	}
	s.reader = r
	return nil
}

func (s *lazyDebSource) List() []string {
	if err := s.ensure(); err != nil {
		return nil
	}
	return s.reader.List()
}

func (s *lazyDebSource) Has(name string) bool {
	if err := s.ensure(); err != nil {
		return false
	}
	return s.reader.Has(name)
}

func (s *lazyDebSource) Extract(name string) ([]byte, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s.reader.Extract(name)
}

// archiveThemeSource adapts a ContentsIndex plus a set of parsed
// icontheme.Index values into icons.ThemeSource.
type archiveThemeSource struct {
	contents *archive.ContentsIndex
	themes   map[string]*icontheme.Index
}

func (s *archiveThemeSource) CandidatesFor(theme, name string, size int) []string {
	idx, ok := s.themes[theme]
	if !ok {
		return nil
	}
	return idx.Candidates(name, size)
}

func (s *archiveThemeSource) Lookup(archivePath string) (string, bool) {
	if s.contents == nil {
		return "", false
	}
	return s.contents.Lookup(archivePath)
}

// buildThemeSource locates and parses index.theme for every theme in order,
// by finding its owning package via contentsIdx and reading it out of the
// archive. Themes whose index.theme cannot be located or read are simply
// absent from the resulting ThemeSource; they contribute no candidates.
func buildThemeSource(archiveRoot string, pkgIndex *archive.PackageIndex, contentsIdx *archive.ContentsIndex, order []string) icons.ThemeSource {
	if contentsIdx == nil {
		return nil
	}
	themes := map[string]*icontheme.Index{}
	for _, theme := range order {
		themeFile := "usr/share/icons/" + theme + "/index.theme"
		pkgName, ok := contentsIdx.Lookup(themeFile)
		if !ok {
			continue
		}
		desc, ok := pkgIndex.Packages()[pkgName]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(archiveRoot, desc.Filename))
		if err != nil {
			continue
		}
		r, err := debpkg.Open(desc.Filename, data)
		if err != nil {
			continue
		}
		content, err := r.Extract(themeFile)
		if err != nil {
			continue
		}
		idx, err := icontheme.Parse(theme, string(content))
		if err != nil {
			continue
		}
		themes[theme] = idx
	}
	if len(themes) == 0 {
		return nil
	}
	return &archiveThemeSource{contents: contentsIdx, themes: themes}
}
