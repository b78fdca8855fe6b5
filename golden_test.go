package cheerioselect

import (
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"golang.org/x/net/html"
)

type goldenCase struct {
	Name     string   `yaml:"name"`
	Selector string   `yaml:"selector"`
	Limit    int      `yaml:"limit"`
	Want     []string `yaml:"want"`
}

type goldenFile struct {
	Document string       `yaml:"document"`
	Cases    []goldenCase `yaml:"cases"`
}

func TestGoldenCases(t *testing.T) {
	raw, err := os.ReadFile("testdata/cases.yaml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var file goldenFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	doc, err := html.Parse(strings.NewReader(file.Document))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}

	for _, tc := range file.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := Select(TextSelector(tc.Selector), doc, nil, tc.Limit)
			if err != nil {
				t.Fatalf("Select(%q): %v", tc.Selector, err)
			}
			want := tc.Want
			if want == nil {
				want = []string{}
			}
			if !slices.Equal(ids(got), want) {
				t.Errorf("Select(%q) = %v, want %v", tc.Selector, ids(got), want)
			}
		})
	}
}
