// Package retrieval ranks project and unit documents from a YAML catalog
// against a visitor's question.
package retrieval

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Filter keys understood by Retrieve.
const (
	FilterProject    = "project"
	FilterPropertyID = "property_id"
)

const (
	defaultLimit = 5
	minTokenLen  = 3
)

type Document struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Project    string   `yaml:"project"`
	PropertyID string   `yaml:"property_id"`
	Aliases    []string `yaml:"aliases"`
	Tags       []string `yaml:"tags"`
	Content    string   `yaml:"content"`
}

type catalogFile struct {
	Documents []Document `yaml:"documents"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	docs  []Document
	text  []string
	limit int
}

type Option func(*Catalog)

// WithLimit caps the number of passages Retrieve returns.
func WithLimit(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.limit = n
		}
	}
}

// Default returns the catalog bundled with the binary.
func Default(opts ...Option) (*Catalog, error) {
	return Parse(defaultCatalog, opts...)
}

// Load reads a catalog file from disk.
func Load(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read catalog: %w", err)
	}
	return Parse(data, opts...)
}

func Parse(data []byte, opts ...Option) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("retrieval: decode catalog: %w", err)
	}
	c := &Catalog{limit: defaultLimit}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("retrieval: document %d (%q) has no content", i, d.ID)
		}
		c.docs = append(c.docs, d)
		c.text = append(c.text, strings.ToLower(d.Title+" "+strings.Join(d.Tags, " ")+" "+d.Content))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.docs) }

type hit struct {
	idx   int
	score int
	exact bool
}

// Retrieve returns up to the configured number of passages, best first.
// Documents about the filtered property always rank first; a project filter
// excludes documents of other projects.
func (c *Catalog) Retrieve(ctx context.Context, query string, filters map[string]string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(query)
	project := strings.ToLower(strings.TrimSpace(filters[FilterProject]))
	property := strings.TrimSpace(filters[FilterPropertyID])

	var hits []hit
	for i, d := range c.docs {
		if project != "" && d.Project != "" && !strings.Contains(project, strings.ToLower(d.Project)) && !strings.Contains(strings.ToLower(d.Project), project) {
			continue
		}
		h := hit{idx: i, exact: property != "" && d.matchesProperty(property)}
		for _, tok := range tokens {
			if strings.Contains(c.text[i], tok) {
				h.score++
			}
		}
		if h.score > 0 || h.exact {
			hits = append(hits, h)
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].exact != hits[b].exact {
			return hits[a].exact
		}
		return hits[a].score > hits[b].score
	})
	if len(hits) > c.limit {
		hits = hits[:c.limit]
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		d := c.docs[h.idx]
		out = append(out, d.Title+": "+strings.TrimSpace(d.Content))
	}
	return out, nil
}

func (d Document) matchesProperty(id string) bool {
	if strings.EqualFold(d.PropertyID, id) {
		return true
	}
	for _, a := range d.Aliases {
		if strings.EqualFold(a, id) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTokenLen || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
