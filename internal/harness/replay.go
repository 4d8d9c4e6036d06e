package harness

import (
	"fmt"

	"github.com/StitchDesign/Stitch-sub007/internal/store"
)

// Replay reruns a scenario and compares its evaluations with a recorded
// trace. It returns the first divergence, or nil when the runs agree.
//
// A run recorded from the same scenario always replays cleanly: node ids
// are sequential and simulated time depends only on the frame counter.
func Replay(s *Scenario, recorded []store.Evaluation, opts ...Option) (*store.Divergence, *Result, error) {
	result, err := Run(s, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("replay %s: %w", s.Name, err)
	}
	return store.Compare(recorded, result.Trace.Evaluations()), result, nil
}
