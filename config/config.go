// Licensed under the MIT License. See LICENSE for details.

// Package config loads the toolchain's optional settings file,
// wwmtool.yaml, following the teacher corpus's table/db definition
// loading style (sigs.k8s.io/yaml over a plain struct, defaults applied
// when the file is absent rather than erroring).
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

// Config holds the handful of settings a deployment may want to
// override; nothing here affects the container or text-block wire
// formats, which are fixed by spec.
type Config struct {
	// SessionRoot is the parent directory under which New sessions are
	// created (spec.md §4.G). Defaults to "./sessions".
	SessionRoot string `json:"sessionRoot"`
	// CompressionLevel is a hint for the zstd encoder level used when
	// packing inner blocks ("fastest", "default", "better", or "best";
	// see compr.SetLevel). Logged at startup by wwmpack.
	CompressionLevel string `json:"compressionLevel"`
	// MergeOutputStem names the default merge output, sans extension,
	// when --output is not given on the CLI.
	MergeOutputStem string `json:"mergeOutputStem"`
}

// Default returns the configuration used when no wwmtool.yaml is found.
func Default() *Config {
	return &Config{
		SessionRoot:      "./sessions",
		CompressionLevel: "default",
		MergeOutputStem:  "translation_merged",
	}
}

// Load reads path (typically "wwmtool.yaml") and overlays it onto
// Default(). A missing file is not an error; it yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", wwmerr.ErrIoError, path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
