package driver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/redhat-performance/rusty-comms-sub000/results"
)

// RunAll runs one Config per requested mechanism through d, sequentially
// by default via errgroup.Group's SetLimit(1) — concurrency across
// mechanisms is a CLI scheduling concern, distinct from the per-mechanism
// worker concurrency parameter each Config carries. When continueOnError
// is false, the first mechanism failure cancels the group's context and
// RunAll returns that error immediately; when true, every mechanism runs
// regardless of earlier failures and all errors are joined into a single
// error mentioning each failing mechanism.
func RunAll(ctx context.Context, d *Driver, configs []Config, continueOnError bool) ([]results.BenchmarkResults, error) {
	out := make([]results.BenchmarkResults, len(configs))

	if continueOnError {
		var failures []error
		for i, cfg := range configs {
			res, err := d.Run(ctx, cfg)
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", cfg.Mechanism, err))
				continue
			}
			out[i] = *res
		}
		if len(failures) > 0 {
			return out, fmt.Errorf("driver: %d of %d mechanisms failed: %w", len(failures), len(configs), errors.Join(failures...))
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			res, err := d.Run(gctx, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.Mechanism, err)
			}
			out[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
