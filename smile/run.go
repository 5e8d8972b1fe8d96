package smile

// Run is one pruning experiment: a model, a dataset, a method, and the
// parameters it was launched with. The app package persists these.
type Run struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arch      string `json:"arch"`
	Dataset   string `json:"dataset"`
	Method    string `json:"method"`
	Params    string `json:"params"`
	StartTime string `json:"start_time"`
	// running, done, or error
	State string `json:"state"`
	Error string `json:"error"`
}

// Metric is one logged scalar, e.g. acc1 at an epoch.
type Metric struct {
	RunID string  `json:"run_id"`
	Epoch int     `json:"epoch"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// CheckpointInfo is the catalog row for a saved checkpoint file.
type CheckpointInfo struct {
	RunID string  `json:"run_id"`
	Mark  string  `json:"mark"`
	Epoch int     `json:"epoch"`
	Acc1  float64 `json:"acc1"`
	Acc5  float64 `json:"acc5"`
	Fname string  `json:"fname"`
}
