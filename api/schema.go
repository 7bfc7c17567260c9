package api

// Artifact names, relative to the output directory.
const (
	IndexFile     = "index.json"
	Tier1File     = "search-tier1.json"
	Tier2File     = "search-tier2.json"
	Tier3File     = "search-tier3.json"
	BlocksDir     = "blocks"
	ChipsDir      = "chips"
	SummarySuffix = ".summary.json"
)

// Search entry types.
const (
	TypeChip     = "chip"
	TypeBlock    = "block"
	TypeRegister = "register"
	TypeField    = "field"
)

// Index is the top-level document consumed by the browsing client.
type Index struct {
	Vendors      []Vendor         `json:"vendors"`
	Families     []*Family        `json:"families"`
	SharedBlocks []*Block         `json:"sharedBlocks"`
	ChipIndex    map[string]*Chip `json:"chipIndex"`
}

// Vendor is a per-vendor rollup.
type Vendor struct {
	Name          string `json:"name"`
	DisplayPrefix string `json:"displayPrefix"`
	FamilyCount   int    `json:"familyCount"`
	ChipCount     int    `json:"chipCount"`
}

// Family is a chip family declared in a vendor config.
type Family struct {
	// Code is unique across all vendors.
	Code string `json:"code"`
	// Display is the vendor display prefix followed by the code.
	Display     string       `json:"display"`
	Vendor      string       `json:"vendor"`
	Subfamilies []*Subfamily `json:"subfamilies"`
	// BlockCount is the number of distinct block names in the family's blocks section.
	BlockCount int `json:"blockCount"`
	// ChipCount is the sum of the subfamily chip lists.
	ChipCount int `json:"chipCount"`
	// FamilyBlocks holds the family-scoped blocks (two path segments).
	FamilyBlocks []*Block `json:"familyBlocks"`
}

// Subfamily groups chips inside a family.
type Subfamily struct {
	Name  string   `json:"name"`
	Chips []string `json:"chips"`
	// RefManual is passed through from the vendor config untouched.
	RefManual any `json:"refManual,omitempty"`
	// Blocks holds the subfamily-scoped blocks (three path segments).
	Blocks []*Block `json:"blocks"`
}

// Block is the index record of a peripheral block definition. Aliases carry
// DerivedFrom and no Description or ParamCount.
type Block struct {
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	DerivedFrom   string  `json:"derivedFrom,omitempty"`
	Source        string  `json:"source"`
	Path          string  `json:"path"`
	RegisterCount int     `json:"registerCount"`
	ParamCount    *int    `json:"paramCount,omitempty"`
	IsAlias       bool    `json:"isAlias"`
}

// NewAliasBlock returns the record for a block derived from another block.
func NewAliasBlock(name, derivedFrom, source, path string) *Block {
	return &Block{
		Name:        name,
		DerivedFrom: derivedFrom,
		Source:      source,
		Path:        path,
		IsAlias:     true,
	}
}

// NewFullBlock returns the record for a block with its own register content.
func NewFullBlock(name, description, source, path string, registerCount, paramCount int) *Block {
	return &Block{
		Name:          name,
		Description:   &description,
		Source:        source,
		Path:          path,
		RegisterCount: registerCount,
		ParamCount:    &paramCount,
	}
}

// Desc returns the description, empty for aliases.
func (b *Block) Desc() string {
	if b.Description == nil {
		return ""
	}
	return *b.Description
}

// Chip is the index record of a chip model.
type Chip struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	CPU            any    `json:"cpu"`
	Path           string `json:"path"`
	InstanceCount  int    `json:"instanceCount"`
	InterruptCount int    `json:"interruptCount"`
}

// Tier1Entry is a chip or block search row. Description is set for blocks only.
type Tier1Entry struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Description *string `json:"description,omitempty"`
}

// RegisterEntry is a tier-2 search row.
type RegisterEntry struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Block     string `json:"block"`
	BlockPath string `json:"blockPath"`
	Cluster   string `json:"cluster,omitempty"`
}

// FieldEntry is a tier-3 search row.
type FieldEntry struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Register  string `json:"register"`
	Block     string `json:"block"`
	BlockPath string `json:"blockPath"`
	Cluster   string `json:"cluster,omitempty"`
}

// Route returns the client location of a search entry. Fields link to their
// register, or to the block when the register is unnamed.
func Route(typ, path, blockPath, name, register string) string {
	switch typ {
	case TypeChip:
		return "#/chip/" + path
	case TypeBlock:
		return "#/block/" + path
	case TypeRegister:
		return "#/block/" + blockPath + "/reg/" + name
	case TypeField:
		if register == "" {
			return "#/block/" + blockPath
		}
		return "#/block/" + blockPath + "/reg/" + register
	}
	return "#/"
}
