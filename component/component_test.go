package component

import "testing"

func TestGlobalIDReverseDNSForm(t *testing.T) {
	got := GlobalID("org.example.Foo", "abc123")
	want := "org/example/Foo/abc123"
	if got != want {
		t.Errorf("GlobalID() = %q, want %q", got, want)
	}
}

func TestGlobalIDTwoPrefixFallback(t *testing.T) {
	// Two dot-parts only: falls back to the two-prefix form even though
	// "com" is a recognized reverse-DNS label, because there are fewer
	// than three parts.
	got := GlobalID("com.example", "deadbeef")
	want := "c/co/com.example/deadbeef"
	if got != want {
		t.Errorf("GlobalID() = %q, want %q", got, want)
	}
}

func TestGlobalIDUnrecognizedPrefixFallback(t *testing.T) {
	got := GlobalID("foo.example.Bar", "cafe")
	want := "f/fo/foo.example.Bar/cafe"
	if got != want {
		t.Errorf("GlobalID() = %q, want %q", got, want)
	}
}

func TestGlobalIDWhitespaceChangesChecksum(t *testing.T) {
	c1 := &Component{ID: "org.example.Foo"}
	c1.SetSourceDataChecksumFromData("<p>hello</p>")
	c2 := &Component{ID: "org.example.Foo"}
	c2.SetSourceDataChecksumFromData("<p>hello</p> ")
	if c1.SrcDataChecksum == c2.SrcDataChecksum {
		t.Error("expected whitespace-only XML change to produce a different checksum")
	}
}

func TestHasIgnoreReason(t *testing.T) {
	c := &Component{}
	if c.HasIgnoreReason() {
		t.Fatal("fresh component should not be ignored")
	}
	c.AddHint("icon-not-found", nil)
	if !c.HasIgnoreReason() {
		t.Error("icon-not-found should mark component ignored")
	}
}

func TestFinalizeCleansLocales(t *testing.T) {
	c := &Component{
		ID:   "org.example.Foo",
		Kind: KindDesktopApp,
		Name: LocaleString{
			"C":          "Foo",
			"de":         "Foo",
			"x-test":     "Test",
			"en.UTF-8":   "Foo En",
		},
		Summary: LocaleString{"C": "A tool"},
		Package: Package{Name: "foo"},
	}
	c.Finalize()

	if _, ok := c.Name["x-test"]; ok {
		t.Error("x-test locale should have been removed")
	}
	if _, ok := c.Name["de"]; ok {
		t.Error("de locale identical to C should have been removed")
	}
	if _, ok := c.Name["en.UTF-8"]; ok {
		t.Error("en.UTF-8 should have been rewritten to en")
	}
	if _, ok := c.Name["en"]; !ok {
		t.Error("expected en locale after .UTF-8 suffix strip")
	}
}

func TestFinalizeEmitsMissingFieldHints(t *testing.T) {
	c := &Component{Package: Package{Name: "foo"}}
	c.Finalize()

	tags := map[string]bool{}
	for _, h := range c.Hints {
		tags[h.Tag] = true
	}
	for _, want := range []string{"metainfo-no-id", "metainfo-no-type", "metainfo-no-name", "metainfo-no-summary"} {
		if !tags[want] {
			t.Errorf("expected hint %q, got %v", want, c.Hints)
		}
	}
}

func TestPkID(t *testing.T) {
	p := Package{Name: "foo", Version: "1.0", Architecture: "amd64"}
	if got, want := p.PkID(), "foo/1.0/amd64"; got != want {
		t.Errorf("PkID() = %q, want %q", got, want)
	}
}
