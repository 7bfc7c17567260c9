package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/agentic-research/sodacat-web/internal/tree"
)

var ErrDuplicateFamily = errors.New("duplicate family codes across vendors")

// BuildFamilyTree turns a vendor's families section into family records.
// Blocks are attached later by the assembler.
func BuildFamilyTree(v Vendor) []*api.Family {
	fams := v.Families()
	out := make([]*api.Family, 0, fams.Len())
	for _, code := range fams.Keys() {
		fam := fams.Map(code)

		subs := fam.Map("subfamilies")
		subfamilies := make([]*api.Subfamily, 0, subs.Len())
		chipCount := 0
		for _, name := range subs.Keys() {
			raw, _ := subs.Get(name)
			chips, refManual := subfamilyChips(raw)
			subfamilies = append(subfamilies, &api.Subfamily{
				Name:      name,
				Chips:     chips,
				RefManual: refManual,
				Blocks:    []*api.Block{},
			})
			chipCount += len(chips)
		}

		display := code
		if v.DisplayPrefix != "" {
			display = v.DisplayPrefix + code
		}
		out = append(out, &api.Family{
			Code:         code,
			Display:      display,
			Vendor:       v.Name,
			Subfamilies:  subfamilies,
			BlockCount:   countBlockNames(fam),
			ChipCount:    chipCount,
			FamilyBlocks: []*api.Block{},
		})
	}
	return out
}

// subfamilyChips normalises a subfamily entry, which is either a plain chip
// list or a mapping with chips and an optional ref_manual.
func subfamilyChips(raw any) ([]string, any) {
	var seq []any
	var refManual any
	switch t := raw.(type) {
	case []any:
		seq = t
	case *tree.Map:
		seq = t.Seq("chips")
		if rm, ok := t.Get("ref_manual"); ok && !isEmpty(rm) {
			refManual = rm
		}
	}
	chips := make([]string, 0, len(seq))
	for _, c := range seq {
		chips = append(chips, tree.String(c))
	}
	return chips, refManual
}

// countBlockNames counts distinct top-level names in the family's blocks
// section, given either as a mapping or as a list of names.
func countBlockNames(fam *tree.Map) int {
	raw, _ := fam.Get("blocks")
	names := make(map[string]struct{})
	switch t := raw.(type) {
	case *tree.Map:
		for _, k := range t.Keys() {
			names[k] = struct{}{}
		}
	case []any:
		for _, e := range t {
			if m, ok := e.(*tree.Map); ok {
				if m.Has("name") {
					names[m.String("name", "")] = struct{}{}
				}
				continue
			}
			names[tree.String(e)] = struct{}{}
		}
	}
	return len(names)
}

// CheckFamilyCodes fails when two families share a code, in any vendor.
func CheckFamilyCodes(families []*api.Family) error {
	seen := make(map[string]int, len(families))
	for _, f := range families {
		seen[f.Code]++
	}
	var dupes []string
	for code, n := range seen {
		if n > 1 {
			dupes = append(dupes, code)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return fmt.Errorf("%w: %s", ErrDuplicateFamily, strings.Join(dupes, ", "))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *tree.Map, []any:
		return tree.Len(t) == 0
	}
	return false
}
