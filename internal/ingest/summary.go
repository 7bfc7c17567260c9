package ingest

import "github.com/agentic-research/sodacat-web/internal/tree"

// DefaultSummaryThreshold is the serialized block size, in bytes, above which a
// summary document is written next to the full one.
const DefaultSummaryThreshold = 50_000

// SummarizeBlock returns a copy of a block document whose registers carry a
// fieldCount instead of their fields. Every other attribute is kept; the
// registers list moves to the end.
func SummarizeBlock(block *tree.Map) *tree.Map {
	out := block.Without("registers")
	regs := ParseRegisters(block.Seq("registers"))
	out.Set("registers", summarizeRegisters(regs))
	return out
}

func summarizeRegisters(regs []Register) []any {
	out := make([]any, 0, len(regs))
	for _, r := range regs {
		out = append(out, summarizeRegister(r))
	}
	return out
}

func summarizeRegister(r Register) any {
	switch reg := r.(type) {
	case *ClusterRegister:
		s := reg.Attrs.Without()
		s.Set("registers", summarizeRegisters(reg.Registers))
		return s
	case *PlainRegister:
		s := reg.Attrs.Without()
		s.Set("fieldCount", len(reg.Fields))
		return s
	case *RawRegister:
		return reg.Value
	}
	return nil
}
