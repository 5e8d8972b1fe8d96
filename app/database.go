package app

import (
	_ "github.com/mattn/go-sqlite3"

	"database/sql"
	"log"

	// use deadlock detector mutexes here since deadlocks in database
	// operations will be common
	sync "github.com/sasha-s/go-deadlock"
)

const DbDebug bool = false

var db *Database

type Database struct {
	db *sql.DB
	mu sync.Mutex
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

// InitDB opens the sqlite database at path and creates any missing
// tables.
func InitDB(path string) {
	sdb, err := sql.Open("sqlite3", path)
	checkErr(err)
	db = &Database{db: sdb}

	db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		k TEXT PRIMARY KEY,
		v TEXT
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT,
		arch TEXT,
		dataset TEXT,
		method TEXT,
		params TEXT,
		start_time TIMESTAMP,
		-- 'running', 'done', or 'error'
		state TEXT DEFAULT 'running',
		error TEXT DEFAULT ''
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY ASC,
		run_id TEXT REFERENCES runs(id),
		epoch INTEGER,
		name TEXT,
		value REAL,
		time TIMESTAMP
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY ASC,
		run_id TEXT REFERENCES runs(id),
		-- e.g. 'just_finished_prune', 'best', 'last'
		mark TEXT,
		epoch INTEGER,
		acc1 REAL,
		acc5 REAL,
		fname TEXT,
		time TIMESTAMP
	)`)
}

// MarkDeadRuns flags runs a dead driver left behind. Drivers call this
// on startup; the read side does not.
func MarkDeadRuns() {
	db.Exec("UPDATE runs SET state = 'error', error = 'terminated' WHERE state = 'running'")
}

func (this *Database) Query(q string, args ...interface{}) *Rows {
	this.mu.Lock()
	if DbDebug {
		log.Printf("[db] Query: %v", q)
	}
	rows, err := this.db.Query(q, args...)
	checkErr(err)
	return &Rows{this, true, rows}
}

func (this *Database) QueryRow(q string, args ...interface{}) *Row {
	this.mu.Lock()
	if DbDebug {
		log.Printf("[db] QueryRow: %v", q)
	}
	row := this.db.QueryRow(q, args...)
	return &Row{this, true, row}
}

func (this *Database) Exec(q string, args ...interface{}) Result {
	this.mu.Lock()
	defer this.mu.Unlock()
	if DbDebug {
		log.Printf("[db] Exec: %v", q)
	}
	result, err := this.db.Exec(q, args...)
	checkErr(err)
	return Result{result}
}

func (this *Database) Transaction(f func(tx Tx)) {
	this.mu.Lock()
	f(Tx{this})
	this.mu.Unlock()
}

type Rows struct {
	db     *Database
	locked bool
	rows   *sql.Rows
}

func (r *Rows) Close() {
	err := r.rows.Close()
	checkErr(err)
	if r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
}

func (r *Rows) Next() bool {
	hasNext := r.rows.Next()
	if !hasNext && r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
	return hasNext
}

func (r *Rows) Scan(dest ...interface{}) {
	err := r.rows.Scan(dest...)
	checkErr(err)
}

type Row struct {
	db     *Database
	locked bool
	row    *sql.Row
}

func (r Row) Scan(dest ...interface{}) {
	err := r.row.Scan(dest...)
	checkErr(err)
	if r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
}

type Result struct {
	result sql.Result
}

func (r Result) LastInsertId() int {
	id, err := r.result.LastInsertId()
	checkErr(err)
	return int(id)
}

func (r Result) RowsAffected() int {
	count, err := r.result.RowsAffected()
	checkErr(err)
	return int(count)
}

type Tx struct {
	db *Database
}

func (tx Tx) Query(q string, args ...interface{}) Rows {
	rows, err := tx.db.db.Query(q, args...)
	checkErr(err)
	return Rows{tx.db, false, rows}
}

func (tx Tx) QueryRow(q string, args ...interface{}) Row {
	row := tx.db.db.QueryRow(q, args...)
	return Row{tx.db, false, row}
}

func (tx Tx) Exec(q string, args ...interface{}) Result {
	result, err := tx.db.db.Exec(q, args...)
	checkErr(err)
	return Result{result}
}
