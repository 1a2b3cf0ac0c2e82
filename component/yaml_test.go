package component

import (
	"strings"
	"testing"
)

func TestToYAMLDocIncludesCoreFields(t *testing.T) {
	cpt := &Component{
		ID:      "com.example.Foo",
		Kind:    KindDesktopApp,
		Name:    LocaleString{"C": "Foo"},
		Summary: LocaleString{"C": "A tool"},
		Package: Package{Name: "foo", Version: "1.0", Architecture: "amd64"},
		Icons:   map[IconKind]string{IconCached: "foo.png"},
	}

	doc, err := cpt.ToYAMLDoc()
	if err != nil {
		t.Fatal(err)
	}
	if doc[:4] != "---\n" {
		t.Errorf("expected explicit document start, got %q", doc[:10])
	}
	for _, want := range []string{"Package: foo\n", "ID: com.example.Foo\n", "Type: desktop-app\n", "cached: foo.png\n"} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected doc to contain %q, got:\n%s", want, doc)
		}
	}
}

func TestToYAMLDocIgnoredComponentOmitsFields(t *testing.T) {
	cpt := &Component{ID: "com.example.Foo", Package: Package{Name: "foo"}}
	cpt.AddHint("icon-not-found", nil)

	doc, err := cpt.ToYAMLDoc()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc, "Ignored: true\n") {
		t.Errorf("expected Ignored: true, got:\n%s", doc)
	}
	if strings.Contains(doc, "Name:") {
		t.Errorf("expected no Name key on an ignored component, got:\n%s", doc)
	}
}

func TestHintsYAMLDocEmptyWhenNoHints(t *testing.T) {
	cpt := &Component{ID: "com.example.Foo"}
	if _, ok := cpt.HintsYAMLDoc("foo/1.0/amd64"); ok {
		t.Error("expected no hints document for a component without hints")
	}
}

func TestHintsYAMLDocListsEachHint(t *testing.T) {
	cpt := &Component{ID: "com.example.Foo", Package: Package{Name: "foo"}}
	cpt.AddHint("icon-not-found", map[string]string{"icon": "foo.png"})

	doc, ok := cpt.HintsYAMLDoc("foo/1.0/amd64")
	if !ok {
		t.Fatal("expected a hints document")
	}
	if !strings.Contains(doc, "tag: icon-not-found\n") {
		t.Errorf("expected hint tag in doc, got:\n%s", doc)
	}
}
