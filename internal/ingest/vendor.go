package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/agentic-research/sodacat-web/internal/tree"
	"github.com/go-git/go-billy/v5"
)

const (
	configDir = "svd"
	modelsDir = "models"
)

var (
	ErrNoSVDDir  = errors.New("svd directory not found")
	ErrNoVendors = errors.New("no vendors discovered")
)

// Vendor is a discovered vendor: a config with a families section and a
// model-file root.
type Vendor struct {
	Name          string
	DisplayPrefix string
	ConfigPath    string
	Config        *tree.Map
	// ModelsDir is relative to the source filesystem root.
	ModelsDir string
}

// Families returns the families section of the vendor config.
func (v Vendor) Families() *tree.Map {
	return v.Config.Map("families")
}

// DiscoverVendors scans svd/<vendor>/*.yaml in sorted order. The first config
// of a vendor directory with a families mapping wins. Vendors without a
// models/<vendor> directory are skipped with a warning.
func DiscoverVendors(src billy.Filesystem, logger *slog.Logger) ([]Vendor, error) {
	dirs, err := src.ReadDir(configDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSVDDir, src.Join(src.Root(), configDir))
		}
		return nil, fmt.Errorf("read %s: %w", configDir, err)
	}
	sortInfos(dirs)

	var vendors []Vendor
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		v, ok, err := loadVendor(src, d.Name(), logger)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, err := src.Stat(v.ModelsDir); err != nil {
			logger.Warn("models directory not found, skipping vendor",
				"vendor", v.Name, "dir", src.Join(src.Root(), v.ModelsDir))
			continue
		}
		logger.Info("discovered vendor", "vendor", v.Name, "prefix", v.DisplayPrefix, "config", v.ConfigPath)
		vendors = append(vendors, v)
	}

	if len(vendors) == 0 {
		return nil, fmt.Errorf("%w (no %s/*/*.yaml with a families section)", ErrNoVendors, configDir)
	}
	return vendors, nil
}

func loadVendor(src billy.Filesystem, name string, logger *slog.Logger) (Vendor, bool, error) {
	dir := src.Join(configDir, name)
	files, err := src.ReadDir(dir)
	if err != nil {
		return Vendor{}, false, fmt.Errorf("read %s: %w", dir, err)
	}
	sortInfos(files)

	var found Vendor
	var ok bool
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		p := src.Join(dir, f.Name())
		doc, err := tree.Load(src, p)
		if err != nil {
			return Vendor{}, false, err
		}
		cfg, isMap := doc.(*tree.Map)
		if !isMap || cfg.Map("families") == nil {
			continue
		}
		if ok {
			logger.Warn("ignoring additional vendor config", "vendor", name, "config", p, "using", found.ConfigPath)
			continue
		}
		found = Vendor{
			Name:          name,
			DisplayPrefix: cfg.String("displayPrefix", ""),
			ConfigPath:    p,
			Config:        cfg,
			ModelsDir:     src.Join(modelsDir, name),
		}
		ok = true
	}
	return found, ok, nil
}

func sortInfos(infos []os.FileInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
}
