package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// writeArtifact writes data to rel inside the output filesystem, creating
// parent directories as needed.
func writeArtifact(out billy.Filesystem, rel string, data []byte) error {
	if dir := path.Dir(rel); dir != "." {
		if err := out.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(out, rel, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// marshalJSON encodes v without HTML escaping, indented when indent is set,
// and without a trailing newline.
func marshalJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// artifactSize returns the size of rel in the output filesystem, or -1.
func artifactSize(out billy.Filesystem, rel string) int64 {
	fi, err := out.Stat(rel)
	if err != nil {
		return -1
	}
	return fi.Size()
}
