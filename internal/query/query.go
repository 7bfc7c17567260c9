// Package query runs JSONPath expressions over emitted artifacts.
package query

import (
	"fmt"
	"path"
	"strings"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Short artifact names accepted in place of a file path.
var aliases = map[string]string{
	"index": api.IndexFile,
	"tier1": api.Tier1File,
	"tier2": api.Tier2File,
	"tier3": api.Tier3File,
}

// Match is one value selected by a query.
type Match struct {
	Value any
}

// Query evaluates a JSONPath selector against root.
func Query(root any, selector string) ([]Match, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	results := x.Get(root)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{Value: r}
	}
	return matches, nil
}

// ArtifactPath maps an artifact name to its file below the data directory:
// index, tier1, tier2 and tier3 name the top-level files; anything else is a
// relative path, with .json added when missing.
func ArtifactPath(name string) string {
	if p, ok := aliases[name]; ok {
		return p
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name
}

// LoadArtifact reads and parses an artifact from the data directory.
func LoadArtifact(data billy.Filesystem, name string) (any, error) {
	rel := ArtifactPath(name)
	b, err := util.ReadFile(data, rel)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", rel, err)
	}
	v, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", rel, err)
	}
	return v, nil
}

// Render formats a match for display: indented JSON with sorted keys.
func Render(m Match) string {
	return oj.JSON(m.Value, &ojg.Options{Indent: 2, Sort: true})
}
