package ingest

import "github.com/agentic-research/sodacat-web/api"

// Flatten produces the register (tier-2) and field (tier-3) search rows of one
// block. Clusters are expanded one level: their sub-registers become rows
// tagged with the cluster name. Entries without a name produce no row of
// their own, but named fields below them are still emitted.
func Flatten(regs []Register, block, blockPath string) ([]api.RegisterEntry, []api.FieldEntry) {
	var t2 []api.RegisterEntry
	var t3 []api.FieldEntry

	emitFields := func(fields []any, register, cluster string) {
		for _, f := range fields {
			name := fieldName(f)
			if name == "" {
				continue
			}
			t3 = append(t3, api.FieldEntry{
				Type:      api.TypeField,
				Name:      name,
				Register:  register,
				Block:     block,
				BlockPath: blockPath,
				Cluster:   cluster,
			})
		}
	}

	for _, r := range regs {
		switch reg := r.(type) {
		// A present but empty registers list is still a cluster; it emits no rows.
		case *ClusterRegister:
			cluster := reg.Name()
			for _, sub := range reg.Registers {
				subName := sub.Name()
				if subName != "" {
					t2 = append(t2, api.RegisterEntry{
						Type:      api.TypeRegister,
						Name:      subName,
						Block:     block,
						BlockPath: blockPath,
						Cluster:   cluster,
					})
				}
				if plain, ok := sub.(*PlainRegister); ok {
					emitFields(plain.Fields, subName, cluster)
				}
			}
		case *PlainRegister:
			name := reg.Name()
			if name != "" {
				t2 = append(t2, api.RegisterEntry{
					Type:      api.TypeRegister,
					Name:      name,
					Block:     block,
					BlockPath: blockPath,
				})
			}
			emitFields(reg.Fields, name, "")
		}
	}
	return t2, t3
}
