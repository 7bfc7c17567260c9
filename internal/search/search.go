// Package search runs the client's tiered name search against the emitted
// search tiers. Tier 1 is always consulted; the larger register and field tiers
// are only loaded when a query is long enough and tier 1 alone finds too little.
package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	DefaultLimit = 20
	// AllLimit caps the full results listing.
	AllLimit = 100

	minQuery      = 2
	minTier2Query = 3
	minTier3Query = 4
	enoughHits    = 5
)

// Match scores.
const (
	ScoreExact     = 100
	ScorePrefix    = 80
	ScoreSubstring = 60
)

// Hit is one search result. It decodes any of the three tier row shapes.
type Hit struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Path        string  `json:"path,omitempty"`
	Block       string  `json:"block,omitempty"`
	BlockPath   string  `json:"blockPath,omitempty"`
	Register    string  `json:"register,omitempty"`
	Cluster     string  `json:"cluster,omitempty"`
	Description *string `json:"description,omitempty"`
	Score       int     `json:"score"`
}

func (h Hit) Route() string {
	return api.Route(h.Type, h.Path, h.BlockPath, h.Name, h.Register)
}

// Detail is the one-line context shown next to a hit.
func (h Hit) Detail() string {
	switch h.Type {
	case api.TypeBlock:
		if h.Description != nil && *h.Description != "" {
			return *h.Description
		}
		return h.Path
	case api.TypeRegister:
		return h.Block + " › " + h.Name
	case api.TypeField:
		return h.Block + " › " + h.Register + " › " + h.Name
	}
	return h.Path
}

// ScoreMatch scores name against query, case-insensitively. Zero means no match.
func ScoreMatch(name, query string) int {
	lower := strings.ToLower(name)
	q := strings.ToLower(query)
	switch {
	case lower == q:
		return ScoreExact
	case strings.HasPrefix(lower, q):
		return ScorePrefix
	case strings.Contains(lower, q):
		return ScoreSubstring
	}
	return 0
}

// TypeWeight ranks entry types: chips above blocks above registers above fields.
func TypeWeight(typ string) int {
	switch typ {
	case api.TypeChip:
		return 10
	case api.TypeBlock:
		return 8
	case api.TypeRegister:
		return 5
	case api.TypeField:
		return 3
	}
	return 1
}

// Searcher holds the tiers of one data directory, loaded on first use.
type Searcher struct {
	data billy.Filesystem

	mu    sync.Mutex
	tiers map[string][]Hit
}

func New(data billy.Filesystem) *Searcher {
	return &Searcher{data: data, tiers: make(map[string][]Hit)}
}

// loaded reports whether the named tier file has been read.
func (s *Searcher) loaded(tier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tiers[tier]
	return ok
}

func (s *Searcher) tier(name string) ([]Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tiers[name]; ok {
		return t, nil
	}
	data, err := util.ReadFile(s.data, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	var t []Hit
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	s.tiers[name] = t
	return t, nil
}

// Search returns at most limit hits for query. Tier 2 is consulted for
// queries of three or more characters when fewer than five hits were found,
// tier 3 for four or more under the same condition.
func (s *Searcher) Search(query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	n := utf8.RuneCountInString(query)
	if n < minQuery {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	hits, err := s.match(api.Tier1File, query, nil)
	if err != nil {
		return nil, err
	}
	if n >= minTier2Query && len(hits) < enoughHits {
		if hits, err = s.match(api.Tier2File, query, hits); err != nil {
			return nil, err
		}
	}
	if n >= minTier3Query && len(hits) < enoughHits {
		if hits, err = s.match(api.Tier3File, query, hits); err != nil {
			return nil, err
		}
	}

	rank(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchAll matches query against every tier and returns all hits, ranked.
func (s *Searcher) SearchAll(query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var hits []Hit
	for _, name := range []string{api.Tier1File, api.Tier2File, api.Tier3File} {
		var err error
		if hits, err = s.match(name, query, hits); err != nil {
			return nil, err
		}
	}
	rank(hits)
	return hits, nil
}

func (s *Searcher) match(tier, query string, hits []Hit) ([]Hit, error) {
	entries, err := s.tier(tier)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if score := ScoreMatch(e.Name, query); score > 0 {
			e.Score = score + TypeWeight(e.Type)
			hits = append(hits, e)
		}
	}
	return hits, nil
}

// rank orders hits by score, highest first. Equal scores keep tier order.
func rank(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}
