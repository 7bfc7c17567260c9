package ingest

import (
	"strings"

	"github.com/agentic-research/sodacat-web/api"
)

// Assembly is everything written after the indexing pass.
type Assembly struct {
	Index api.Index
	Tier1 []api.Tier1Entry
	Tier2 []api.RegisterEntry
	Tier3 []api.FieldEntry
}

// Assemble groups blocks by scope, attaches them to families and subfamilies,
// computes the vendor rollups and builds tier 1. Families are modified in place.
func Assemble(vendors []Vendor, families []*api.Family, blocks BlockIndex, chips map[string]*api.Chip, tier2 []api.RegisterEntry, tier3 []api.FieldEntry) *Assembly {
	shared := []*api.Block{}
	familyBlocks := make(map[string][]*api.Block)
	subfamilyBlocks := make(map[string][]*api.Block)

	paths := blocks.SortedPaths()
	for _, p := range paths {
		b := blocks[p]
		parts := strings.Split(p, "/")
		switch len(parts) {
		case 1:
			shared = append(shared, b)
		case 2:
			familyBlocks[parts[0]] = append(familyBlocks[parts[0]], b)
		case 3:
			key := parts[0] + "/" + parts[1]
			subfamilyBlocks[key] = append(subfamilyBlocks[key], b)
		}
	}

	for _, f := range families {
		if fb, ok := familyBlocks[f.Code]; ok {
			f.FamilyBlocks = fb
		}
		for _, s := range f.Subfamilies {
			if sb, ok := subfamilyBlocks[f.Code+"/"+s.Name]; ok {
				s.Blocks = sb
			}
		}
	}

	rollups := make([]api.Vendor, 0, len(vendors))
	for _, v := range vendors {
		r := api.Vendor{Name: v.Name, DisplayPrefix: v.DisplayPrefix}
		for _, f := range families {
			if f.Vendor == v.Name {
				r.FamilyCount++
				r.ChipCount += f.ChipCount
			}
		}
		rollups = append(rollups, r)
	}

	tier1 := make([]api.Tier1Entry, 0, len(chips)+len(blocks))
	for _, p := range sortedKeys(chips) {
		tier1 = append(tier1, api.Tier1Entry{Type: api.TypeChip, Name: chips[p].Name, Path: p})
	}
	for _, p := range paths {
		desc := blocks[p].Desc()
		tier1 = append(tier1, api.Tier1Entry{Type: api.TypeBlock, Name: blocks[p].Name, Path: p, Description: &desc})
	}

	if tier2 == nil {
		tier2 = []api.RegisterEntry{}
	}
	if tier3 == nil {
		tier3 = []api.FieldEntry{}
	}

	return &Assembly{
		Index: api.Index{
			Vendors:      rollups,
			Families:     families,
			SharedBlocks: shared,
			ChipIndex:    chips,
		},
		Tier1: tier1,
		Tier2: tier2,
		Tier3: tier3,
	}
}
