package train

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// SaveCheckpoint writes ckpt as JSON. Solver state travels inside the
// checkpoint so a resumed run continues with the same momenta.
func SaveCheckpoint(fname string, ckpt *smile.Checkpoint) error {
	data, err := json.Marshal(ckpt)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", fname, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint, validates the model graph, and
// reapplies the mask once so pruned weights start out zero.
func LoadCheckpoint(fname string) (*smile.Checkpoint, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", fname, err)
	}
	var ckpt smile.Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", fname, err)
	}
	if ckpt.Model == nil {
		return nil, fmt.Errorf("checkpoint %s has no model", fname)
	}
	if err := ckpt.Model.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", fname, err)
	}
	if ckpt.Plan != nil && len(ckpt.Plan.Mask) > 0 {
		ckpt.Plan.Mask.Apply(ckpt.Model)
	}
	return &ckpt, nil
}

// RestoreSolver builds a solver and loads any state the checkpoint
// carries for it.
func RestoreSolver(ckpt *smile.Checkpoint, name string, momentum float64, weightDecay float64) (Solver, error) {
	solver, err := NewSolver(name, momentum, weightDecay)
	if err != nil {
		return nil, err
	}
	if len(ckpt.Solver) > 0 {
		if err := solver.LoadState(ckpt.Solver); err != nil {
			return nil, fmt.Errorf("restore solver state: %w", err)
		}
	}
	return solver, nil
}
