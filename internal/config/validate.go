package config

import (
	"errors"
	"fmt"

	"github.com/replyloop/replyloop/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, that all referenced module IDs exist in
// the registry, and that job entries are structurally complete.
//
// Schedule syntax and duplicate job names are deliberately NOT checked
// here: those are registration-time concerns, handled non-fatally by the
// scheduler so a single bad job cannot abort process boot.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateJobs(cfg.Jobs)...)

	return errors.Join(errs...)
}

func validateJobs(jobs []JobConfig) []error {
	var errs []error
	for i, j := range jobs {
		if j.Name == "" {
			errs = append(errs, fmt.Errorf("config: jobs[%d]: name is required", i))
		}
		if j.Schedule == "" {
			errs = append(errs, fmt.Errorf("config: jobs[%d] (%s): schedule is required", i, j.Name))
		}
		if j.Handler == "" {
			errs = append(errs, fmt.Errorf("config: jobs[%d] (%s): handler is required", i, j.Name))
		}
		switch j.Overlap {
		case "", OverlapSkip, OverlapQueue:
		default:
			errs = append(errs, fmt.Errorf("config: jobs[%d] (%s): overlap must be %q or %q, got %q",
				i, j.Name, OverlapSkip, OverlapQueue, j.Overlap))
		}
	}
	return errs
}
