package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/agentic-research/sodacat-web/internal/tree"
)

// BlockIndex maps block keys (model-root relative paths without extension) to
// their records, across all vendors.
type BlockIndex map[string]*api.Block

// Resolve finds the block a model name refers to from a chip in the given
// family and subfamily. Subfamily-scoped blocks shadow family-scoped ones,
// which shadow vendor-shared ones.
func (ix BlockIndex) Resolve(model, family, subfamily string) (string, bool) {
	if model == "" {
		return "", false
	}
	var candidates []string
	if family != "" && subfamily != "" {
		candidates = append(candidates, family+"/"+subfamily+"/"+model)
	}
	if family != "" {
		candidates = append(candidates, family+"/"+model)
	}
	candidates = append(candidates, model)

	for _, c := range candidates {
		if _, ok := ix[c]; ok {
			return c, true
		}
	}
	return "", false
}

// SortedPaths returns the block keys in lexicographic order.
func (ix BlockIndex) SortedPaths() []string {
	return sortedKeys(map[string]*api.Block(ix))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stagedChip is a chip waiting for the complete block index. Its document is
// consumed by resolveChip and dropped afterwards.
type stagedChip struct {
	meta *api.Chip
	doc  *tree.Map
	key  string
}

// scope returns the family and subfamily a chip key lives in: the first
// segment when there are at least two, the second when there are at least three.
func (c *stagedChip) scope() (family, subfamily string) {
	parts := strings.Split(c.key, "/")
	if len(parts) >= 2 {
		family = parts[0]
	}
	if len(parts) >= 3 {
		subfamily = parts[1]
	}
	return family, subfamily
}

// resolveChip adds modelPath and baseAddressHex to every instance of the chip
// document. Unresolved models are left without a modelPath.
func resolveChip(c *stagedChip, ix BlockIndex) (resolved, unresolved int) {
	family, subfamily := c.scope()
	instances := c.doc.Map("instances")
	for _, name := range instances.Keys() {
		inst := instances.Map(name)
		if inst == nil {
			continue
		}
		model := inst.String("model", "")
		if p, ok := ix.Resolve(model, family, subfamily); ok {
			inst.Set("modelPath", p)
			resolved++
		} else {
			unresolved++
		}
		if addr, ok := inst.Get("baseAddress"); ok && tree.IsInt(addr) {
			inst.Set("baseAddressHex", FormatAddress(addr))
		}
	}
	return resolved, unresolved
}

// FormatAddress renders an integer base address as 0x followed by at least
// eight upper-case hex digits.
func FormatAddress(addr any) string {
	return fmt.Sprintf("0x%08X", addr)
}
