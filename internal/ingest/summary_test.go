package ingest

import (
	"testing"

	"github.com/agentic-research/sodacat-web/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fieldHeavyBlock = `
name: ADC
description: Analog to digital converter
source: RM0090
registers:
  - name: SR
    offset: 0
    fields:
      - name: AWD
        bitOffset: 0
      - name: EOC
        bitOffset: 1
  - name: SQR
    registers:
      - name: SQR1
        fields:
          - name: L
            bitOffset: 20
      - name: SQR2
        fields:
          - name: SQ7
            bitOffset: 0
params:
  - name: channels
    value: 16
`

func decodeMap(t *testing.T, src string) *tree.Map {
	t.Helper()
	doc, err := tree.Decode([]byte(src))
	require.NoError(t, err)
	return doc.(*tree.Map)
}

func encode(t *testing.T, v any) string {
	t.Helper()
	b, err := tree.Encode(v)
	require.NoError(t, err)
	return string(b)
}

func TestSummarizeBlock(t *testing.T) {
	block := decodeMap(t, fieldHeavyBlock)
	summary := SummarizeBlock(block)

	assert.Equal(t,
		`{"name":"ADC","description":"Analog to digital converter","source":"RM0090","params":[{"name":"channels","value":16}],`+
			`"registers":[{"name":"SR","offset":0,"fieldCount":2},`+
			`{"name":"SQR","registers":[{"name":"SQR1","fieldCount":1},{"name":"SQR2","fieldCount":1}]}]}`,
		encode(t, summary))

	// The input is left untouched.
	assert.Contains(t, encode(t, block), `"fields"`)
}

func TestSummarizeBlock_SmallerForFieldHeavyBlocks(t *testing.T) {
	block := decodeMap(t, fieldHeavyBlock)
	assert.Less(t, len(encode(t, SummarizeBlock(block))), len(encode(t, block)))
}

func TestSummarizeBlock_FieldlessRegistersGrow(t *testing.T) {
	block := decodeMap(t, "registers:\n  - name: CR\n  - name: SR\n")
	summary := encode(t, SummarizeBlock(block))

	assert.Equal(t, `{"registers":[{"name":"CR","fieldCount":0},{"name":"SR","fieldCount":0}]}`, summary)
	assert.Greater(t, len(summary), len(encode(t, block)))
}

func TestSummarizeBlock_Idempotent(t *testing.T) {
	once := SummarizeBlock(decodeMap(t, fieldHeavyBlock))
	twice := SummarizeBlock(once)

	for _, r := range twice.Seq("registers") {
		reg := r.(*tree.Map)
		if reg.Has("registers") {
			for _, sub := range reg.Seq("registers") {
				n, _ := sub.(*tree.Map).Get("fieldCount")
				assert.Equal(t, 0, n)
			}
			continue
		}
		n, _ := reg.Get("fieldCount")
		assert.Equal(t, 0, n)
	}
	assert.Equal(t, len(encode(t, once)), len(encode(t, twice)))
}

func TestSummarizeBlock_ArbitraryDepth(t *testing.T) {
	block := decodeMap(t, `
registers:
  - name: L1
    registers:
      - name: L2
        registers:
          - name: L3
            fields:
              - name: F
              - name: G
`)
	assert.Equal(t,
		`{"registers":[{"name":"L1","registers":[{"name":"L2","registers":[{"name":"L3","fieldCount":2}]}]}]}`,
		encode(t, SummarizeBlock(block)))
}

func TestSummarizeBlock_NoRegisters(t *testing.T) {
	block := decodeMap(t, "name: EMPTY\n")
	assert.Equal(t, `{"name":"EMPTY","registers":[]}`, encode(t, SummarizeBlock(block)))
}
