package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/studiowebux/execbench/internal/types"
)

// Catalog is an ordered, read-only list of test cases.
// All actors of a run share the same *Catalog.
type Catalog struct {
	cases []types.TestCase
}

// New builds a catalog, trimming code and giving every case a unique name
func New(cases ...types.TestCase) *Catalog {
	seen := make(map[string]int, len(cases))
	built := make([]types.TestCase, 0, len(cases))

	for _, tc := range cases {
		tc.Code = strings.TrimSpace(tc.Code)
		tc.Language = types.Language(strings.TrimSpace(string(tc.Language)))

		name := tc.Identity()
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		tc.Name = name

		built = append(built, tc)
	}

	return &Catalog{cases: built}
}

// Len returns the number of cases
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.cases)
}

// At returns the case at index i
func (c *Catalog) At(i int) types.TestCase {
	return c.cases[i]
}

// Cases returns a copy of the cases in catalog order
func (c *Catalog) Cases() []types.TestCase {
	if c == nil {
		return nil
	}
	out := make([]types.TestCase, len(c.cases))
	copy(out, c.cases)
	return out
}

// Get returns the first case whose identity is name
func (c *Catalog) Get(name string) (types.TestCase, bool) {
	for _, tc := range c.cases {
		if tc.Identity() == name {
			return tc, true
		}
	}
	return types.TestCase{}, false
}

// Languages returns the distinct languages, sorted
func (c *Catalog) Languages() []string {
	set := make(map[string]struct{})
	for _, tc := range c.cases {
		set[string(tc.Language)] = struct{}{}
	}

	langs := make([]string, 0, len(set))
	for l := range set {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Filter keeps only the cases written in one of languages, preserving order.
// An empty list returns the catalog unchanged.
func (c *Catalog) Filter(languages ...string) (*Catalog, error) {
	if len(languages) == 0 {
		return c, nil
	}

	known := c.Languages()
	wanted := make(map[types.Language]bool, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if !contains(known, l) {
			return nil, unknownLanguage(l, known)
		}
		wanted[types.Language(l)] = true
	}

	var kept []types.TestCase
	for _, tc := range c.cases {
		if wanted[tc.Language] {
			kept = append(kept, tc)
		}
	}
	return &Catalog{cases: kept}, nil
}

func unknownLanguage(lang string, known []string) error {
	reason := fmt.Sprintf("unknown language %q", lang)

	matches := fuzzy.Find(lang, known)
	if len(matches) > 0 {
		suggestions := make([]string, 0, len(matches))
		for _, m := range matches {
			suggestions = append(suggestions, m.Str)
		}
		reason += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	} else if len(known) > 0 {
		reason += fmt.Sprintf(" (available: %s)", strings.Join(known, ", "))
	}

	return types.NewConfigurationError("language", reason)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
