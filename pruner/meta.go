package pruner

import (
	"log"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// MetaPruner carries the shared machinery every method builds on:
// scoring, dependency clustering, budgeted selection, reconstruction.
// Concrete methods embed it and decide when each step runs.
type MetaPruner struct {
	Params   Params
	Clusters []*Cluster
	Scores   map[string][]float64
	Plan     *smile.PruningPlan
}

func NewMetaPruner(params Params) MetaPruner {
	return MetaPruner{Params: params}
}

// Decide scores the model and fixes the pruning plan without touching
// any weights.
func (p *MetaPruner) Decide(m *smile.Model) error {
	if p.Params.WG == "weight" {
		plan, err := SelectUnstructured(m, p.Params)
		if err != nil {
			return err
		}
		p.Plan = plan
		for _, l := range m.Prunables() {
			log.Printf("[pruner] layer %s: keep %d/%d weights", l.Name, plan.Mask.NumKept(l.Name), l.Weight.Numel())
		}
		return nil
	}

	scores, err := ScoreModel(m, p.Params.Score)
	if err != nil {
		return err
	}
	clusters, err := BuildClusters(m)
	if err != nil {
		return err
	}
	plan, err := SelectStructured(m, clusters, scores, p.Params)
	if err != nil {
		return err
	}
	p.Scores, p.Clusters, p.Plan = scores, clusters, plan
	for _, l := range m.Prunables() {
		if kept, ok := plan.Kept[l.Name]; ok {
			log.Printf("[pruner] layer %s: keep %d/%d filters", l.Name, len(kept), l.OutChannels())
		}
	}
	return nil
}

// Build realizes the decided plan: a reconstructed smaller model for
// structured pruning, a masked clone for unstructured.
func (p *MetaPruner) Build(m *smile.Model) (*Result, error) {
	if p.Params.WG == "weight" {
		return &Result{Model: BuildMasked(m, p.Plan), Plan: p.Plan}, nil
	}
	pruned, err := Reconstruct(m, p.Plan)
	if err != nil {
		return nil, err
	}
	return &Result{Model: pruned, Plan: p.Plan}, nil
}
