package app

import (
	"net/http"

	gouuid "github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/MingSun-Tse/smilepruning/smile"
)

type DBRun struct{ smile.Run }

const RunQuery = "SELECT id, name, arch, dataset, method, params, start_time, state, error FROM runs"

func runListHelper(rows *Rows) []*DBRun {
	runs := []*DBRun{}
	for rows.Next() {
		var run DBRun
		rows.Scan(&run.ID, &run.Name, &run.Arch, &run.Dataset, &run.Method,
			&run.Params, &run.StartTime, &run.State, &run.Error)
		runs = append(runs, &run)
	}
	return runs
}

func ListRuns() []*DBRun {
	rows := db.Query(RunQuery + " ORDER BY start_time DESC")
	return runListHelper(rows)
}

func GetRun(id string) *DBRun {
	rows := db.Query(RunQuery+" WHERE id = ?", id)
	runs := runListHelper(rows)
	if len(runs) == 1 {
		return runs[0]
	}
	return nil
}

func NewRun(name string, arch string, dataset string, method string, params string) *DBRun {
	id := gouuid.New().String()
	db.Exec(
		"INSERT INTO runs (id, name, arch, dataset, method, params, start_time) VALUES (?, ?, ?, ?, ?, ?, datetime('now'))",
		id, name, arch, dataset, method, params,
	)
	return GetRun(id)
}

func (run *DBRun) SetDone() {
	run.State = "done"
	db.Exec("UPDATE runs SET state = 'done' WHERE id = ?", run.ID)
}

func (run *DBRun) SetError(error string) {
	run.State = "error"
	run.Error = error
	db.Exec("UPDATE runs SET state = 'error', error = ? WHERE id = ?", error, run.ID)
}

func (run *DBRun) Delete() {
	db.Exec("DELETE FROM metrics WHERE run_id = ?", run.ID)
	db.Exec("DELETE FROM checkpoints WHERE run_id = ?", run.ID)
	db.Exec("DELETE FROM runs WHERE id = ?", run.ID)
}

// RecordCheckpoint catalogs a checkpoint file written for this run.
func (run *DBRun) RecordCheckpoint(info smile.CheckpointInfo) {
	db.Exec(
		"INSERT INTO checkpoints (run_id, mark, epoch, acc1, acc5, fname, time) VALUES (?, ?, ?, ?, ?, ?, datetime('now'))",
		run.ID, info.Mark, info.Epoch, info.Acc1, info.Acc5, info.Fname,
	)
}

func (run *DBRun) ListCheckpoints() []smile.CheckpointInfo {
	rows := db.Query(
		"SELECT run_id, mark, epoch, acc1, acc5, fname FROM checkpoints WHERE run_id = ? ORDER BY id",
		run.ID,
	)
	infos := []smile.CheckpointInfo{}
	for rows.Next() {
		var info smile.CheckpointInfo
		rows.Scan(&info.RunID, &info.Mark, &info.Epoch, &info.Acc1, &info.Acc5, &info.Fname)
		infos = append(infos, info)
	}
	return infos
}

func init() {
	Router.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		smile.JsonResponse(w, ListRuns())
	}).Methods("GET")

	Router.HandleFunc("/runs/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		run := GetRun(mux.Vars(r)["run_id"])
		if run == nil {
			http.Error(w, "no such run", 404)
			return
		}
		smile.JsonResponse(w, run)
	}).Methods("GET")

	Router.HandleFunc("/runs/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		run := GetRun(mux.Vars(r)["run_id"])
		if run == nil {
			http.Error(w, "no such run", 404)
			return
		}
		run.Delete()
	}).Methods("DELETE")

	Router.HandleFunc("/runs/{run_id}/checkpoints", func(w http.ResponseWriter, r *http.Request) {
		run := GetRun(mux.Vars(r)["run_id"])
		if run == nil {
			http.Error(w, "no such run", 404)
			return
		}
		smile.JsonResponse(w, run.ListCheckpoints())
	}).Methods("GET")
}
