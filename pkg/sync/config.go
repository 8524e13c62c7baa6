package sync

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ScanConfig controls which notes the scanner reads and how many tasks it
// may create per note.
type ScanConfig struct {
	IncludeCompleted bool     `mapstructure:"include_completed"`
	MaxIssuesPerFile int      `mapstructure:"max_issues_per_file"`
	FilePatterns     []string `mapstructure:"file_patterns"`
	SkipTags         []string `mapstructure:"skip_tags"`
}

// DefaultScanConfig returns the settings used when nothing is configured.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		IncludeCompleted: false,
		MaxIssuesPerFile: 10,
		FilePatterns:     []string{"*.md", "*.txt"},
		SkipTags:         []string{AutoCreatedTag},
	}
}

// DecodeScanConfig overlays a loosely typed "scan" block from the config
// file onto the defaults.
func DecodeScanConfig(raw map[string]any) (ScanConfig, error) {
	cfg := DefaultScanConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode scan config: %w", err)
	}
	if cfg.MaxIssuesPerFile < 0 {
		return cfg, fmt.Errorf("scan config: max_issues_per_file must not be negative")
	}
	return cfg, nil
}
