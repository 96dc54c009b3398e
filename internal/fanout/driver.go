// Package fanout runs a query across multiple segments concurrently,
// giving each segment its own scorer instance so fan-out and fan-in stay
// entirely lock-free.
package fanout

import (
	"context"

	"corvusscan/postings/internal/qexec"

	"golang.org/x/sync/errgroup"
)

// Run executes plan against every segment in segs, each through its own
// qexec.Scorer produced by newScorer, and returns the scorers in the
// same order as segs. A segment whose Resolve never matches any query
// term still gets a Prepare/no-Consider pass, matching ExecQuery's own
// empty-result behavior.
//
// Degenerate cases match the zero/one-segment fast paths of the source
// this is grounded on: zero segments returns immediately with an empty
// slice, and a single segment runs inline without spawning a goroutine.
func Run(ctx context.Context, plan *qexec.Node, segs []qexec.Segment, masked []qexec.MaskTester, preFilter qexec.DocumentsFilter, flags qexec.ExecFlags, newScorer func() qexec.Scorer) ([]qexec.Scorer, error) {
	if len(segs) == 0 {
		return nil, nil
	}

	scorers := make([]qexec.Scorer, len(segs))

	if len(segs) == 1 {
		scorers[0] = newScorer()
		var m qexec.MaskTester
		if len(masked) > 0 {
			m = masked[0]
		}
		if err := qexec.ExecQuery(plan, segs[0], m, scorers[0], preFilter, flags); err != nil {
			return nil, err
		}
		return scorers, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segs {
		i, seg := i, seg
		scorers[i] = newScorer()
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			var m qexec.MaskTester
			if i < len(masked) {
				m = masked[i]
			}
			return qexec.ExecQuery(plan, seg, m, scorers[i], preFilter, flags)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scorers, nil
}
