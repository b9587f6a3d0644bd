package compute

import (
	"flag"

	"github.com/pkg/errors"
)

// Config configures a [Gatherer].
type Config struct {
	// RechunkOutput merges gathered scalar and view columns into a single
	// chunk instead of producing one chunk per index chunk.
	RechunkOutput bool `yaml:"rechunk_output"`

	// MaxTargetChunks normalizes scalar and view targets with more chunks
	// than this into a single chunk before gathering. 0 disables
	// normalization.
	MaxTargetChunks int `yaml:"max_target_chunks"`
}

// RegisterFlags registers flags for the gatherer config.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("gather.", f)
}

// RegisterFlagsWithPrefix registers flags for the gatherer config with the
// given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.RechunkOutput, prefix+"rechunk-output", false, "Merge gathered columns into a single chunk instead of one chunk per index chunk.")
	f.IntVar(&cfg.MaxTargetChunks, prefix+"max-target-chunks", 0, "Merge targets with more chunks than this into a single chunk before gathering. 0 disables merging.")
}

// Validate validates the config.
func (cfg *Config) Validate() error {
	if cfg.MaxTargetChunks < 0 {
		return errors.Errorf("invalid max target chunks %d: must be greater than or equal to 0", cfg.MaxTargetChunks)
	}
	return nil
}
