package train

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// ParseLRSchedule reads an epoch-to-LR map from either a JSON object
// ({"0":0.01,"30":0.001}) or a compact colon form (0:0.01,30:0.001).
func ParseLRSchedule(spec string) (map[int]float64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	schedule := make(map[int]float64)
	if strings.HasPrefix(spec, "{") {
		var raw map[string]float64
		if err := json.Unmarshal([]byte(spec), &raw); err != nil {
			return nil, smile.ConfigErrorf("bad lr schedule %q: %v", spec, err)
		}
		for k, v := range raw {
			epoch, err := strconv.Atoi(k)
			if err != nil {
				return nil, smile.ConfigErrorf("bad lr schedule epoch %q", k)
			}
			schedule[epoch] = v
		}
		return schedule, nil
	}
	for _, part := range strings.Split(spec, ",") {
		kv := strings.Split(strings.TrimSpace(part), ":")
		if len(kv) != 2 {
			return nil, smile.ConfigErrorf("bad lr schedule entry %q", part)
		}
		epoch, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, smile.ConfigErrorf("bad lr schedule epoch %q", kv[0])
		}
		lr, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, smile.ConfigErrorf("bad lr schedule rate %q", kv[1])
		}
		schedule[epoch] = lr
	}
	return schedule, nil
}

// LRForEpoch picks the rate of the last milestone at or before epoch,
// or base when none applies.
func LRForEpoch(schedule map[int]float64, epoch int, base float64) float64 {
	if len(schedule) == 0 {
		return base
	}
	milestones := make([]int, 0, len(schedule))
	for e := range schedule {
		milestones = append(milestones, e)
	}
	sort.Ints(milestones)
	lr := base
	for _, e := range milestones {
		if e > epoch {
			break
		}
		lr = schedule[e]
	}
	return lr
}
