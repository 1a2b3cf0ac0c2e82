package icontheme

import "testing"

const sampleTheme = `[Icon Theme]
Name=hicolor
Directories=64x64/apps,scalable/apps

[64x64/apps]
Size=64
Context=Applications
Type=Fixed

[scalable/apps]
Size=64
MinSize=1
MaxSize=512
Type=Scalable
`

func TestParseFixedAndScalable(t *testing.T) {
	idx, err := Parse("hicolor", sampleTheme)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Dirs) != 2 {
		t.Fatalf("expected 2 dirs, got %d: %+v", len(idx.Dirs), idx.Dirs)
	}

	fixed := idx.Dirs[0]
	if fixed.Type != TypeFixed || !fixed.Matches(64) || fixed.Matches(63) {
		t.Errorf("fixed dir matching wrong: %+v", fixed)
	}

	scalable := idx.Dirs[1]
	if scalable.Type != TypeScalable || !scalable.Matches(32) || !scalable.Matches(512) || scalable.Matches(513) {
		t.Errorf("scalable dir matching wrong: %+v", scalable)
	}
}

func TestThresholdDefault(t *testing.T) {
	idx, err := Parse("breeze", "[48x48/apps]\nSize=48\nType=Threshold\n")
	if err != nil {
		t.Fatal(err)
	}
	d := idx.Dirs[0]
	if d.Threshold != 2 {
		t.Errorf("expected default threshold 2, got %d", d.Threshold)
	}
	if !d.Matches(46) || !d.Matches(50) || d.Matches(45) || d.Matches(51) {
		t.Errorf("threshold matching wrong: %+v", d)
	}
}

func TestCandidates(t *testing.T) {
	idx, err := Parse("hicolor", sampleTheme)
	if err != nil {
		t.Fatal(err)
	}
	cands := idx.Candidates("foo", 64)
	want := "usr/share/icons/hicolor/64x64/apps/foo.png"
	found := false
	for _, c := range cands {
		if c == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q among candidates, got %v", want, cands)
	}
}
