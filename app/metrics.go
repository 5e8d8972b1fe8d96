package app

import (
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/mux"

	"github.com/MingSun-Tse/smilepruning/smile"
)

var metricServer *socketio.Server

// LogMetric persists one scalar and pushes it to any socket clients
// watching the run.
func LogMetric(runID string, epoch int, name string, value float64) {
	db.Exec(
		"INSERT INTO metrics (run_id, epoch, name, value, time) VALUES (?, ?, ?, ?, datetime('now'))",
		runID, epoch, name, value,
	)
	if metricServer != nil {
		metric := smile.Metric{RunID: runID, Epoch: epoch, Name: name, Value: value}
		metricServer.BroadcastToRoom("run-"+runID, "metric", string(smile.JsonMarshal(metric)))
	}
}

// ListMetrics returns a run's metrics, optionally only those with the
// given name.
func ListMetrics(runID string, name string) []smile.Metric {
	var rows *Rows
	if name == "" {
		rows = db.Query("SELECT run_id, epoch, name, value FROM metrics WHERE run_id = ? ORDER BY id", runID)
	} else {
		rows = db.Query("SELECT run_id, epoch, name, value FROM metrics WHERE run_id = ? AND name = ? ORDER BY id", runID, name)
	}
	metrics := []smile.Metric{}
	for rows.Next() {
		var m smile.Metric
		rows.Scan(&m.RunID, &m.Epoch, &m.Name, &m.Value)
		metrics = append(metrics, m)
	}
	return metrics
}

func init() {
	SetupFuncs = append(SetupFuncs, func(server *socketio.Server) {
		metricServer = server
		server.OnEvent("/", "watch", func(s socketio.Conn, runID string) {
			s.Join("run-" + runID)
		})
	})

	Router.HandleFunc("/runs/{run_id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		run := GetRun(mux.Vars(r)["run_id"])
		if run == nil {
			http.Error(w, "no such run", 404)
			return
		}
		query := r.URL.Query()
		metrics := ListMetrics(run.ID, query.Get("name"))
		// after=N: only epochs past N, so a dashboard can fill the gap
		// between its last seen metric and the live socket stream
		if s := query.Get("after"); s != "" {
			after := smile.ParseInt(s)
			filtered := []smile.Metric{}
			for _, m := range metrics {
				if m.Epoch > after {
					filtered = append(filtered, m)
				}
			}
			metrics = filtered
		}
		smile.JsonResponse(w, metrics)
	}).Methods("GET")
}
