package ingest

// ChipSet is the union of chip names declared across every vendor config.
// It is built once, before any model file is classified, and never mutated.
type ChipSet struct {
	names map[string]struct{}
}

// CollectChipNames builds the ChipSet from all discovered vendors.
func CollectChipNames(vendors []Vendor) ChipSet {
	names := make(map[string]struct{})
	for _, v := range vendors {
		fams := v.Families()
		for _, code := range fams.Keys() {
			subs := fams.Map(code).Map("subfamilies")
			for _, sub := range subs.Keys() {
				raw, _ := subs.Get(sub)
				chips, _ := subfamilyChips(raw)
				for _, c := range chips {
					names[c] = struct{}{}
				}
			}
		}
	}
	return ChipSet{names: names}
}

// Contains reports whether name is a declared chip.
func (s ChipSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of distinct chip names.
func (s ChipSet) Len() int {
	return len(s.names)
}
