package ingest

import "github.com/agentic-research/sodacat-web/api"

// SearchSink receives every search row after the index is assembled, in tier
// order. It lets the engine mirror the tier files into another store without
// knowing about it.
type SearchSink interface {
	AddTier1(e api.Tier1Entry) error
	AddRegister(e api.RegisterEntry) error
	AddField(e api.FieldEntry) error
}
