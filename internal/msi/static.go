package msi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Static is an Inspector that serves the same metadata for every installer.
type Static struct {
	Info *Info
}

// Inspect returns the fixed metadata, or ErrUnavailable when none is set.
func (s *Static) Inspect(context.Context, string) (*Info, error) {
	if s == nil || s.Info == nil {
		return nil, ErrUnavailable
	}

	return s.Info, nil
}

// metadataFile is the on-disk form read by LoadStatic.
type metadataFile struct {
	// Properties are rows of the installer Property table.
	Properties map[string]string `yaml:"properties"`
	// Summary holds summary-stream values.
	Summary struct {
		ProductName  string `yaml:"product_name"`
		Manufacturer string `yaml:"manufacturer"`
	} `yaml:"summary"`
}

// LoadStatic reads installer properties from a YAML file and derives a Static
// inspector from them.
//
//	properties:
//	  ProductCode: "{6F1C0B34-...}"
//	  ProductVersion: "1.2.0"
//	  ALLUSERS: "1"
//	summary:
//	  product_name: Contoso Agent
//	  manufacturer: Contoso
func LoadStatic(path string) (*Static, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read installer metadata: %w", err)
	}

	var file metadataFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("unmarshal installer metadata: %w", err)
	}

	info, err := FromProperties(file.Properties, Summary{
		ProductName:  file.Summary.ProductName,
		Manufacturer: file.Summary.Manufacturer,
	})
	if err != nil {
		return nil, fmt.Errorf("installer metadata %s: %w", path, err)
	}

	return &Static{Info: info}, nil
}
