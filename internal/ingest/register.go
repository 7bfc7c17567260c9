package ingest

import "github.com/agentic-research/sodacat-web/internal/tree"

// Register is one entry of a block's register list. Clusters are told apart
// from plain registers by the presence of a nested "registers" key.
type Register interface {
	// Name is the register or cluster name, empty when absent.
	Name() string
	// Width is the number of registers this entry contributes to registerCount.
	Width() int
}

// PlainRegister is a register with an optional field list.
type PlainRegister struct {
	// Attrs holds every key except fields.
	Attrs  *tree.Map
	Fields []any
}

// ClusterRegister groups sub-registers, which may themselves be clusters.
type ClusterRegister struct {
	// Attrs holds every key except registers.
	Attrs     *tree.Map
	Registers []Register
}

// RawRegister is a list entry that is not a mapping. It is passed through
// untouched and never flattened.
type RawRegister struct {
	Value any
}

func (r *PlainRegister) Name() string   { return r.Attrs.String("name", "") }
func (r *ClusterRegister) Name() string { return r.Attrs.String("name", "") }
func (r *RawRegister) Name() string     { return "" }

func (r *PlainRegister) Width() int   { return 1 }
func (r *ClusterRegister) Width() int { return len(r.Registers) }
func (r *RawRegister) Width() int     { return 1 }

// ParseRegister classifies one register list entry.
func ParseRegister(v any) Register {
	m, ok := v.(*tree.Map)
	if !ok {
		return &RawRegister{Value: v}
	}
	if m.Has("registers") {
		return &ClusterRegister{
			Attrs:     m.Without("fields", "registers"),
			Registers: ParseRegisters(m.Seq("registers")),
		}
	}
	return &PlainRegister{
		Attrs:  m.Without("fields"),
		Fields: m.Seq("fields"),
	}
}

// ParseRegisters classifies every entry of a register list.
func ParseRegisters(seq []any) []Register {
	out := make([]Register, 0, len(seq))
	for _, v := range seq {
		out = append(out, ParseRegister(v))
	}
	return out
}

// RegisterCount sums the widths of the top-level entries: a cluster counts its
// sub-registers, anything else counts one.
func RegisterCount(regs []Register) int {
	n := 0
	for _, r := range regs {
		n += r.Width()
	}
	return n
}

func fieldName(v any) string {
	m, ok := v.(*tree.Map)
	if !ok {
		return ""
	}
	return m.String("name", "")
}
