package ingest

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/agentic-research/sodacat-web/internal/tree"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
)

const (
	modelExt       = ".yaml"
	derivedFromKey = "@derivedFrom"
	progressEvery  = 100
)

// BuildStats summarises one build.
type BuildStats struct {
	Vendors    int
	Files      int
	Blocks     int
	Aliases    int
	Summaries  int
	Chips      int
	Resolved   int
	Unresolved int
	Tier1      int
	Tier2      int
	Tier3      int
	// Sizes maps top-level artifact names to their size in bytes.
	Sizes map[string]int64
}

// Engine drives a build: discovery, the indexing pass over every vendor's
// model files, deferred chip resolution, and assembly of the index and
// search tiers.
type Engine struct {
	Source billy.Filesystem // sodaCat checkout: svd/ and models/
	Out    billy.Filesystem // output directory
	Logger *slog.Logger

	// SummaryThreshold is the serialized block size above which a summary is
	// also written.
	SummaryThreshold int

	// Sink, when set, receives every search row after assembly.
	Sink SearchSink

	vendors  []Vendor
	families []*api.Family
	chips    ChipSet
	blocks   BlockIndex
	staged   map[string]*stagedChip
	tier2    []api.RegisterEntry
	tier3    []api.FieldEntry
	stats    BuildStats
}

func NewEngine(src, out billy.Filesystem, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Source:           src,
		Out:              out,
		Logger:           logger,
		SummaryThreshold: DefaultSummaryThreshold,
	}
}

// Prepare runs the configuration stages: vendor discovery, the chip-name
// pre-scan and the family tree with its duplicate-code check. It writes
// nothing, so callers can defer creating other outputs until it succeeds.
func (e *Engine) Prepare() error {
	vendors, err := DiscoverVendors(e.Source, e.Logger)
	if err != nil {
		return err
	}

	e.chips = CollectChipNames(vendors)

	families := []*api.Family{}
	for _, v := range vendors {
		families = append(families, BuildFamilyTree(v)...)
	}
	if err := CheckFamilyCodes(families); err != nil {
		return err
	}
	e.Logger.Info("configuration loaded", "vendors", len(vendors), "families", len(families), "chips", e.chips.Len())

	e.vendors = vendors
	e.families = families
	return nil
}

// Build runs every stage, calling Prepare first unless it already succeeded.
// Configuration errors (no vendors, duplicate family codes) are returned
// before anything is written. Block documents are written during the indexing
// pass; the index and tier files only once everything is aggregated in memory.
func (e *Engine) Build() (*BuildStats, error) {
	if e.vendors == nil {
		if err := e.Prepare(); err != nil {
			return nil, err
		}
	}
	vendors, families := e.vendors, e.families
	defer func() { e.vendors, e.families = nil, nil }()

	e.blocks = make(BlockIndex)
	e.staged = make(map[string]*stagedChip)
	e.tier2 = nil
	e.tier3 = nil
	e.stats = BuildStats{Vendors: len(vendors), Sizes: make(map[string]int64)}

	for _, v := range vendors {
		if err := e.indexVendor(v); err != nil {
			return nil, err
		}
	}
	e.Logger.Info("indexing complete",
		"files", e.stats.Files, "blocks", e.stats.Blocks, "chips", len(e.staged),
		"summaries", e.stats.Summaries)

	chipIndex, err := e.writeChips()
	if err != nil {
		return nil, err
	}

	asm := Assemble(vendors, families, e.blocks, chipIndex, e.tier2, e.tier3)
	if err := e.emit(asm); err != nil {
		return nil, err
	}
	return &e.stats, nil
}

func (e *Engine) indexVendor(v Vendor) error {
	e.Logger.Info("scanning models", "vendor", v.Name, "dir", v.ModelsDir)
	files, err := listModelFiles(e.Source, v.ModelsDir)
	if err != nil {
		return err
	}
	for _, rel := range files {
		e.stats.Files++
		if e.stats.Files%progressEvery == 0 {
			e.Logger.Info("files processed", "count", e.stats.Files)
		}
		if err := e.indexFile(v, rel); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) indexFile(v Vendor, rel string) error {
	doc, err := tree.Load(e.Source, e.Source.Join(v.ModelsDir, rel))
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	m, ok := doc.(*tree.Map)
	if !ok {
		e.Logger.Warn("skipping description file that is not a mapping", "vendor", v.Name, "file", rel)
		return nil
	}

	key := strings.TrimSuffix(rel, modelExt)
	stem := path.Base(key)
	if e.chips.Contains(stem) {
		e.stageChip(v, key, stem, m)
		return nil
	}
	return e.indexBlock(v, key, stem, m)
}

func (e *Engine) stageChip(v Vendor, key, stem string, m *tree.Map) {
	if _, dup := e.staged[key]; dup {
		e.Logger.Warn("duplicate chip path, later vendor wins", "path", key, "vendor", v.Name)
	}
	cpu, ok := m.Get("cpu")
	if !ok {
		cpu = tree.NewMap()
	}
	instances, _ := m.Get("instances")
	interrupts, _ := m.Get("interrupts")
	e.staged[key] = &stagedChip{
		meta: &api.Chip{
			Name:           m.String("name", stem),
			Source:         m.String("source", ""),
			CPU:            cpu,
			Path:           key,
			InstanceCount:  tree.Len(instances),
			InterruptCount: tree.Len(interrupts),
		},
		doc: m,
		key: key,
	}
}

func (e *Engine) indexBlock(v Vendor, key, stem string, m *tree.Map) error {
	name := m.String("name", stem)
	source := m.String("source", "")

	var b *api.Block
	alias := m.Has(derivedFromKey)
	if alias {
		b = api.NewAliasBlock(name, m.String(derivedFromKey, ""), source, key)
		e.stats.Aliases++
	} else {
		regs := ParseRegisters(m.Seq("registers"))
		params, _ := m.Get("params")
		b = api.NewFullBlock(name, m.String("description", ""), source, key, RegisterCount(regs), tree.Len(params))

		t2, t3 := Flatten(regs, name, key)
		e.tier2 = append(e.tier2, t2...)
		e.tier3 = append(e.tier3, t3...)
	}

	if _, dup := e.blocks[key]; dup {
		e.Logger.Warn("duplicate block path, later vendor wins", "path", key, "vendor", v.Name)
	}
	e.blocks[key] = b

	data, err := tree.Encode(m)
	if err != nil {
		return fmt.Errorf("encode block %s: %w", key, err)
	}
	if err := writeArtifact(e.Out, path.Join(api.BlocksDir, key+".json"), data); err != nil {
		return err
	}
	e.stats.Blocks++

	if !alias && len(data) > e.SummaryThreshold {
		summary, err := tree.Encode(SummarizeBlock(m))
		if err != nil {
			return fmt.Errorf("encode summary %s: %w", key, err)
		}
		if err := writeArtifact(e.Out, path.Join(api.BlocksDir, key+api.SummarySuffix), summary); err != nil {
			return err
		}
		e.stats.Summaries++
		e.Logger.Debug("wrote block summary", "path", key, "full", len(data), "summary", len(summary))
	}
	return nil
}

// writeChips is the second pass: it needs the complete block index of every
// vendor. Staged documents are released once written.
func (e *Engine) writeChips() (map[string]*api.Chip, error) {
	e.Logger.Info("writing chip documents", "chips", len(e.staged))
	index := make(map[string]*api.Chip, len(e.staged))
	for _, key := range sortedKeys(e.staged) {
		c := e.staged[key]
		resolved, unresolved := resolveChip(c, e.blocks)
		e.stats.Resolved += resolved
		e.stats.Unresolved += unresolved
		if unresolved > 0 {
			e.Logger.Debug("unresolved instance models", "chip", key, "count", unresolved)
		}

		data, err := tree.Encode(c.doc)
		if err != nil {
			return nil, fmt.Errorf("encode chip %s: %w", key, err)
		}
		if err := writeArtifact(e.Out, path.Join(api.ChipsDir, key+".json"), data); err != nil {
			return nil, err
		}
		index[key] = c.meta
	}
	e.stats.Chips = len(index)
	e.staged = nil
	return index, nil
}

func (e *Engine) emit(asm *Assembly) error {
	e.Logger.Info("writing index and search tiers")
	outputs := []struct {
		name   string
		v      any
		indent bool
	}{
		{api.IndexFile, asm.Index, true},
		{api.Tier1File, asm.Tier1, false},
		{api.Tier2File, asm.Tier2, false},
		{api.Tier3File, asm.Tier3, false},
	}
	for _, o := range outputs {
		data, err := marshalJSON(o.v, o.indent)
		if err != nil {
			return fmt.Errorf("encode %s: %w", o.name, err)
		}
		if err := writeArtifact(e.Out, o.name, data); err != nil {
			return err
		}
	}

	e.stats.Tier1 = len(asm.Tier1)
	e.stats.Tier2 = len(asm.Tier2)
	e.stats.Tier3 = len(asm.Tier3)
	e.Logger.Info("search tiers", "tier1", e.stats.Tier1, "tier2", e.stats.Tier2, "tier3", e.stats.Tier3)

	if e.Sink != nil {
		if err := feedSink(e.Sink, asm); err != nil {
			return fmt.Errorf("search sink: %w", err)
		}
	}

	for _, o := range outputs {
		size := artifactSize(e.Out, o.name)
		e.stats.Sizes[o.name] = size
		if size >= 0 {
			e.Logger.Info("artifact size", "file", o.name, "size", humanize.Bytes(uint64(size)))
		}
	}
	return nil
}

func feedSink(sink SearchSink, asm *Assembly) error {
	for _, t := range asm.Tier1 {
		if err := sink.AddTier1(t); err != nil {
			return err
		}
	}
	for _, r := range asm.Tier2 {
		if err := sink.AddRegister(r); err != nil {
			return err
		}
	}
	for _, f := range asm.Tier3 {
		if err := sink.AddField(f); err != nil {
			return err
		}
	}
	return nil
}

// listModelFiles returns every description file below root as a slash path
// relative to root, in lexicographic order.
func listModelFiles(fsys billy.Filesystem, root string) ([]string, error) {
	var files []string
	var walk func(rel string) error
	walk = func(rel string) error {
		dir := root
		if rel != "" {
			dir = fsys.Join(root, rel)
		}
		infos, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, fi := range infos {
			child := path.Join(rel, fi.Name())
			switch {
			case fi.IsDir():
				if err := walk(child); err != nil {
					return err
				}
			case strings.HasSuffix(fi.Name(), modelExt):
				files = append(files, child)
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
