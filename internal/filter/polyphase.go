package filter

import (
	"fmt"
)

// Bank is the polyphase decomposition of a prototype filter into L branches.
//
// Branch p holds the prototype taps h[p], h[p+L], h[p+2L], ... zero-padded
// to TapsPerPhase and stored in REVERSED order, so that a branch can be
// dotted directly against the oldest-to-newest input history window:
//
//	y = Σ_k Branches[p][k] · window[k],  window[TapsPerPhase-1] = newest input
type Bank struct {
	// Branches[phase][tap], reversed per branch.
	Branches [][]float64

	// NumPhases is the number of branches (the interpolation factor L).
	NumPhases int

	// TapsPerPhase is ceil(TotalTaps / NumPhases).
	TapsPerPhase int

	// TotalTaps is the prototype length before decomposition.
	TotalTaps int
}

// Decompose splits prototype into numPhases polyphase branches.
func Decompose(prototype []float64, numPhases int) (*Bank, error) {
	if len(prototype) == 0 {
		return nil, fmt.Errorf("%w: empty prototype", ErrInvalidSpec)
	}
	if numPhases < 1 {
		return nil, fmt.Errorf("%w: %d phases", ErrInvalidSpec, numPhases)
	}

	tapsPerPhase := (len(prototype) + numPhases - 1) / numPhases

	bank := &Bank{
		Branches:     make([][]float64, numPhases),
		NumPhases:    numPhases,
		TapsPerPhase: tapsPerPhase,
		TotalTaps:    len(prototype),
	}

	for phase := range numPhases {
		branch := make([]float64, tapsPerPhase)
		for tap := range tapsPerPhase {
			idx := phase + tap*numPhases
			if idx < len(prototype) {
				branch[tapsPerPhase-1-tap] = prototype[idx]
			}
		}
		bank.Branches[phase] = branch
	}

	return bank, nil
}

// BranchGain returns the DC gain of one branch.
func (b *Bank) BranchGain(phase int) float64 {
	var sum float64
	for _, c := range b.Branches[phase] {
		sum += c
	}
	return sum
}

// MemoryUsage returns the approximate coefficient memory in bytes.
func (b *Bank) MemoryUsage() int64 {
	const bytesPerFloat64 = 8
	return int64(b.NumPhases) * int64(b.TapsPerPhase) * bytesPerFloat64
}
