package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/agentic-research/sodacat-web/api"
	"github.com/agentic-research/sodacat-web/internal/tree"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stConfig = `
displayPrefix: STM32
families:
  F4:
    subfamilies:
      F40x:
        chips: [STM32F405, STM32F407]
        ref_manual:
          name: RM0090
      F41x: [STM32F410]
    blocks:
      TIM: {}
      USART2: {}
`

const nxpConfig = `
families:
  LPC8:
    subfamilies:
      LPC80x: [LPC802]
`

const clusterTimer = `
name: TIM
description: Advanced timer
registers:
  - name: CCR
    registers:
      - name: CCR1
        fields:
          - name: CCR
      - name: CCR2
      - name: CCR3
  - name: CR1
    fields:
      - name: CEN
      - name: UDIS
  - name: CR2
params:
  - name: channels
`

func corpus() map[string]string {
	return map[string]string{
		"svd/st/stm32.yaml":           stConfig,
		"svd/nxp/lpc.yaml":            nxpConfig,
		"models/st/UART.yaml":         "name: UART\ndescription: Universal async receiver\nregisters:\n  - name: DR\n",
		"models/st/F4/TIM.yaml":       "name: TIM\ndescription: Basic timer\nregisters:\n  - name: CNT\n",
		"models/st/F4/USART2.yaml":    "name: USART2\n'@derivedFrom': UART\nsource: RM0090\n",
		"models/st/F4/F40x/TIM.yaml":  clusterTimer,
		"models/st/F4/F40x/notes.txt": "not a model",
		"models/st/F4/F40x/STM32F405.yaml": `
name: STM32F405
source: SVD
cpu:
  name: CM4
  fpu: true
instances:
  TIM1:
    model: TIM
    baseAddress: 0x40010000
  USART1:
    model: UART
    baseAddress: 1073741824
  GHOST:
    model: NOPE
interrupts:
  - name: TIM1_UP
    value: 25
`,
		"models/st/F4/F41x/STM32F410.yaml": `
instances:
  TIM2:
    model: TIM
    baseAddress: "0x40000000"
`,
		"models/nxp/GPIO.yaml":               "name: GPIO\nregisters:\n  - name: PIN\n    fields:\n      - name: PORT0\n",
		"models/nxp/LPC8/LPC80x/LPC802.yaml": "name: LPC802\ninstances:\n  GPIO0:\n    model: GPIO\n    baseAddress: 0xA0000000\n",
	}
}

func writeCorpus(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readJSON(t *testing.T, fs billy.Filesystem, name string, v any) {
	t.Helper()
	data, err := util.ReadFile(fs, name)
	require.NoError(t, err, "read %s", name)
	require.NoError(t, json.Unmarshal(data, v), "decode %s", name)
}

func buildCorpus(t *testing.T, files map[string]string) (billy.Filesystem, *BuildStats) {
	t.Helper()
	out := memfs.New()
	e := NewEngine(writeCorpus(t, files), out, quietLogger())
	stats, err := e.Build()
	require.NoError(t, err)
	return out, stats
}

func TestEngine_Build(t *testing.T) {
	out, stats := buildCorpus(t, corpus())

	assert.Equal(t, 2, stats.Vendors)
	assert.Equal(t, 8, stats.Files)
	assert.Equal(t, 5, stats.Blocks)
	assert.Equal(t, 1, stats.Aliases)
	assert.Equal(t, 3, stats.Chips)
	assert.Equal(t, 0, stats.Summaries)

	var index api.Index
	readJSON(t, out, api.IndexFile, &index)

	t.Run("vendor rollups in name order", func(t *testing.T) {
		require.Len(t, index.Vendors, 2)
		assert.Equal(t, api.Vendor{Name: "nxp", DisplayPrefix: "", FamilyCount: 1, ChipCount: 1}, index.Vendors[0])
		assert.Equal(t, api.Vendor{Name: "st", DisplayPrefix: "STM32", FamilyCount: 1, ChipCount: 3}, index.Vendors[1])
	})

	t.Run("families with attached blocks", func(t *testing.T) {
		require.Len(t, index.Families, 2)
		lpc, f4 := index.Families[0], index.Families[1]
		assert.Equal(t, "LPC8", lpc.Display)
		assert.Equal(t, "STM32F4", f4.Display)
		assert.Equal(t, 2, f4.BlockCount)
		assert.Equal(t, 3, f4.ChipCount)

		require.Len(t, f4.FamilyBlocks, 2)
		assert.Equal(t, "F4/TIM", f4.FamilyBlocks[0].Path)
		assert.Equal(t, "F4/USART2", f4.FamilyBlocks[1].Path)
		assert.True(t, f4.FamilyBlocks[1].IsAlias)
		assert.Equal(t, "UART", f4.FamilyBlocks[1].DerivedFrom)

		require.Len(t, f4.Subfamilies, 2)
		f40x := f4.Subfamilies[0]
		assert.Equal(t, []string{"STM32F405", "STM32F407"}, f40x.Chips)
		assert.NotNil(t, f40x.RefManual)
		require.Len(t, f40x.Blocks, 1)
		assert.Equal(t, 5, f40x.Blocks[0].RegisterCount)
		assert.Nil(t, f4.Subfamilies[1].RefManual)
		assert.Empty(t, f4.Subfamilies[1].Blocks)
	})

	t.Run("shared blocks sorted", func(t *testing.T) {
		require.Len(t, index.SharedBlocks, 2)
		assert.Equal(t, "GPIO", index.SharedBlocks[0].Path)
		assert.Equal(t, "UART", index.SharedBlocks[1].Path)
	})

	t.Run("chip index", func(t *testing.T) {
		require.Len(t, index.ChipIndex, 3)
		c := index.ChipIndex["F4/F40x/STM32F405"]
		require.NotNil(t, c)
		assert.Equal(t, 3, c.InstanceCount)
		assert.Equal(t, 1, c.InterruptCount)
		assert.Equal(t, "SVD", c.Source)
		assert.Equal(t, map[string]any{"name": "CM4", "fpu": true}, c.CPU)

		// Name falls back to the file name.
		assert.Equal(t, "STM32F410", index.ChipIndex["F4/F41x/STM32F410"].Name)
	})
}

func TestEngine_ChipResolution(t *testing.T) {
	out, stats := buildCorpus(t, corpus())
	assert.Equal(t, 4, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)

	var chip struct {
		Instances map[string]map[string]any `json:"instances"`
	}
	readJSON(t, out, "chips/F4/F40x/STM32F405.json", &chip)

	tim1 := chip.Instances["TIM1"]
	assert.Equal(t, "F4/F40x/TIM", tim1["modelPath"], "subfamily block shadows family block")
	assert.Equal(t, "0x40010000", tim1["baseAddressHex"])

	usart := chip.Instances["USART1"]
	assert.Equal(t, "UART", usart["modelPath"])
	assert.Equal(t, "0x40000000", usart["baseAddressHex"])

	ghost := chip.Instances["GHOST"]
	assert.NotContains(t, ghost, "modelPath")
	assert.NotContains(t, ghost, "baseAddressHex")

	readJSON(t, out, "chips/F4/F41x/STM32F410.json", &chip)
	tim2 := chip.Instances["TIM2"]
	assert.Equal(t, "F4/TIM", tim2["modelPath"])
	assert.NotContains(t, tim2, "baseAddressHex", "string addresses are not rendered")

	readJSON(t, out, "chips/LPC8/LPC80x/LPC802.json", &chip)
	assert.Equal(t, "GPIO", chip.Instances["GPIO0"]["modelPath"])
	assert.Equal(t, "0xA0000000", chip.Instances["GPIO0"]["baseAddressHex"])
}

func TestEngine_ChipDocumentKeepsKeyOrder(t *testing.T) {
	out, _ := buildCorpus(t, corpus())
	data, err := util.ReadFile(out, "chips/LPC8/LPC80x/LPC802.json")
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"LPC802","instances":{"GPIO0":{"model":"GPIO","baseAddress":2684354560,"modelPath":"GPIO","baseAddressHex":"0xA0000000"}}}`,
		string(data))
}

func TestEngine_SearchTiers(t *testing.T) {
	out, stats := buildCorpus(t, corpus())

	var tier1 []api.Tier1Entry
	readJSON(t, out, api.Tier1File, &tier1)
	require.Len(t, tier1, 8)
	assert.Equal(t, stats.Tier1, len(tier1))
	assert.Equal(t, api.TypeChip, tier1[0].Type)
	assert.Equal(t, "F4/F40x/STM32F405", tier1[0].Path)
	assert.Equal(t, api.TypeBlock, tier1[3].Type)
	assert.Equal(t, "F4/F40x/TIM", tier1[3].Path)
	require.NotNil(t, tier1[3].Description)
	assert.Equal(t, "Advanced timer", *tier1[3].Description)

	var tier2 []api.RegisterEntry
	readJSON(t, out, api.Tier2File, &tier2)
	names := make([]string, 0, len(tier2))
	for _, r := range tier2 {
		names = append(names, r.Name)
	}
	// nxp before st; within st: F4/F40x/TIM, F4/TIM, UART.
	assert.Equal(t, []string{"PIN", "CCR1", "CCR2", "CCR3", "CR1", "CR2", "CNT", "DR"}, names)
	assert.Equal(t, "CCR", tier2[1].Cluster)
	assert.Equal(t, "", tier2[4].Cluster)

	var tier3 []api.FieldEntry
	readJSON(t, out, api.Tier3File, &tier3)
	require.Len(t, tier3, 4)
	assert.Equal(t, api.FieldEntry{Type: "field", Name: "PORT0", Register: "PIN", Block: "GPIO", BlockPath: "GPIO"}, tier3[0])
	assert.Equal(t, api.FieldEntry{Type: "field", Name: "CCR", Register: "CCR1", Block: "TIM", BlockPath: "F4/F40x/TIM", Cluster: "CCR"}, tier3[1])
}

func TestEngine_TiersStableUnderRebuild(t *testing.T) {
	out1, _ := buildCorpus(t, corpus())
	out2, _ := buildCorpus(t, corpus())
	for _, name := range []string{api.IndexFile, api.Tier1File, api.Tier2File, api.Tier3File} {
		a, err := util.ReadFile(out1, name)
		require.NoError(t, err)
		b, err := util.ReadFile(out2, name)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}
}

func TestEngine_BlockDocuments(t *testing.T) {
	out, _ := buildCorpus(t, corpus())

	data, err := util.ReadFile(out, "blocks/F4/USART2.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"USART2","@derivedFrom":"UART","source":"RM0090"}`, string(data))

	_, err = out.Stat("blocks/F4/F40x/TIM.json")
	assert.NoError(t, err)
	_, err = out.Stat("blocks/F4/F40x/TIM.summary.json")
	assert.Error(t, err)
}

func TestEngine_SummaryThreshold(t *testing.T) {
	doc, err := tree.Decode([]byte(clusterTimer))
	require.NoError(t, err)
	encoded, err := tree.Encode(doc)
	require.NoError(t, err)
	size := len(encoded)

	run := func(threshold int) billy.Filesystem {
		out := memfs.New()
		e := NewEngine(writeCorpus(t, corpus()), out, quietLogger())
		e.SummaryThreshold = threshold
		_, err := e.Build()
		require.NoError(t, err)
		return out
	}

	t.Run("exactly at threshold", func(t *testing.T) {
		out := run(size)
		_, err := out.Stat("blocks/F4/F40x/TIM.summary.json")
		assert.Error(t, err)
	})

	t.Run("one byte over", func(t *testing.T) {
		out := run(size - 1)
		data, err := util.ReadFile(out, "blocks/F4/F40x/TIM.summary.json")
		require.NoError(t, err)

		var summary struct {
			Name      string           `json:"name"`
			Registers []map[string]any `json:"registers"`
		}
		require.NoError(t, json.Unmarshal(data, &summary))
		assert.Equal(t, "TIM", summary.Name)
		require.Len(t, summary.Registers, 3)
		assert.NotContains(t, summary.Registers[0], "fieldCount")
		assert.Equal(t, float64(2), summary.Registers[1]["fieldCount"])
		assert.NotContains(t, summary.Registers[1], "fields")
	})

	t.Run("aliases are never summarized", func(t *testing.T) {
		out := run(1)
		_, err := out.Stat("blocks/F4/USART2.summary.json")
		assert.Error(t, err)
		_, err = out.Stat("blocks/UART.summary.json")
		assert.NoError(t, err)
	})
}

func TestEngine_DuplicateFamilyAbortsBeforeOutput(t *testing.T) {
	files := corpus()
	files["svd/zeta/zeta.yaml"] = "families:\n  F4:\n    subfamilies:\n      X: [ZETA1]\n"
	files["models/zeta/ZETA1.yaml"] = "name: ZETA1\n"

	out := memfs.New()
	e := NewEngine(writeCorpus(t, files), out, quietLogger())
	_, err := e.Build()
	require.ErrorIs(t, err, ErrDuplicateFamily)
	assert.Contains(t, err.Error(), "F4")

	infos, _ := out.ReadDir("/")
	assert.Empty(t, infos, "no artifact may be written")

	assert.ErrorIs(t, NewEngine(writeCorpus(t, files), memfs.New(), quietLogger()).Prepare(), ErrDuplicateFamily)
}

func TestEngine_EmptyFamiliesSection(t *testing.T) {
	out, stats := buildCorpus(t, map[string]string{
		"svd/a/a.yaml":    "families: {}\n",
		"models/a/X.yaml": "name: X\n",
	})
	assert.Equal(t, 1, stats.Vendors)

	data, err := util.ReadFile(out, api.IndexFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"families":[]`)
}

func TestEngine_NoVendors(t *testing.T) {
	t.Run("missing svd directory", func(t *testing.T) {
		e := NewEngine(memfs.New(), memfs.New(), quietLogger())
		_, err := e.Build()
		assert.ErrorIs(t, err, ErrNoSVDDir)
	})

	t.Run("only vendor lacks models", func(t *testing.T) {
		src := writeCorpus(t, map[string]string{"svd/st/stm32.yaml": stConfig})
		e := NewEngine(src, memfs.New(), quietLogger())
		_, err := e.Build()
		assert.ErrorIs(t, err, ErrNoVendors)
	})
}

func TestEngine_VendorWithoutModelsIsSkipped(t *testing.T) {
	files := corpus()
	files["svd/ti/msp.yaml"] = "families:\n  MSP430:\n    subfamilies:\n      G2: [MSP430G2553]\n"

	out, stats := buildCorpus(t, files)
	assert.Equal(t, 2, stats.Vendors)

	var index api.Index
	readJSON(t, out, api.IndexFile, &index)
	for _, f := range index.Families {
		assert.NotEqual(t, "MSP430", f.Code)
	}
}

type recordingSink struct {
	tier1 []api.Tier1Entry
	regs  []api.RegisterEntry
	flds  []api.FieldEntry
}

func (s *recordingSink) AddTier1(e api.Tier1Entry) error { s.tier1 = append(s.tier1, e); return nil }
func (s *recordingSink) AddRegister(e api.RegisterEntry) error { s.regs = append(s.regs, e); return nil }
func (s *recordingSink) AddField(e api.FieldEntry) error { s.flds = append(s.flds, e); return nil }

func TestEngine_FeedsSearchSink(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(writeCorpus(t, corpus()), memfs.New(), quietLogger())
	e.Sink = sink
	stats, err := e.Build()
	require.NoError(t, err)

	assert.Len(t, sink.tier1, stats.Tier1)
	assert.Len(t, sink.regs, stats.Tier2)
	assert.Len(t, sink.flds, stats.Tier3)
}
