package document

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []LineRange
		want []LineRange
	}{
		{"empty", nil, nil},
		{"single", []LineRange{{3, 5}}, []LineRange{{3, 5}}},
		{"adjacent", []LineRange{{1, 2}, {3, 4}}, []LineRange{{1, 4}}},
		{"overlap unsorted", []LineRange{{5, 9}, {1, 6}}, []LineRange{{1, 9}}},
		{"gap", []LineRange{{1, 2}, {4, 4}}, []LineRange{{1, 2}, {4, 4}}},
		{"contained", []LineRange{{1, 10}, {2, 3}}, []LineRange{{1, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeRanges(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeRanges(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewChunk(t *testing.T) {
	units := []Unit{
		{Text: "# Intro", Kind: KindHeader, HeaderPath: "Intro", LineStart: 1, LineEnd: 1},
		{Text: "Body text.", Kind: KindParagraph, HeaderPath: "Intro", LineStart: 3, LineEnd: 4},
	}
	c := NewChunk(units)
	if c.Content != "# Intro\n\nBody text." {
		t.Errorf("content = %q", c.Content)
	}
	if c.HeaderPath != "Intro" {
		t.Errorf("header path = %q", c.HeaderPath)
	}
	want := []LineRange{{1, 1}, {3, 4}}
	if !reflect.DeepEqual(c.LineRanges, want) {
		t.Errorf("ranges = %v, want %v", c.LineRanges, want)
	}
	for _, u := range units {
		if !c.Covers(u) {
			t.Errorf("chunk does not cover unit %q", u.Text)
		}
	}
}

func TestLineRangeJSON(t *testing.T) {
	b, err := json.Marshal([]LineRange{{1, 4}, {7, 7}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[[1,4],[7,7]]" {
		t.Fatalf("got %s", b)
	}
	var back []LineRange
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[1].Start != 7 || back[1].End != 7 {
		t.Errorf("round trip = %v", back)
	}
}

func TestSplitPath(t *testing.T) {
	if got := SplitPath(""); got != nil {
		t.Errorf("empty path = %v", got)
	}
	got := SplitPath("A > B > C")
	if len(got) != 3 || got[2] != "C" {
		t.Errorf("SplitPath = %v", got)
	}
}
