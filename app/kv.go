package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

func GetKV(key string) string {
	var val string
	rows := db.Query("SELECT v FROM kv WHERE k = ?", key)
	if rows.Next() {
		rows.Scan(&val)
		rows.Close()
	}
	return val
}

func SetKV(key string, val string) {
	db.Transaction(func(tx Tx) {
		var count int
		tx.QueryRow("SELECT COUNT(*) FROM kv WHERE k = ?", key).Scan(&count)
		if count == 0 {
			tx.Exec("INSERT INTO kv (k, v) VALUES (?, ?)", key, val)
		} else {
			tx.Exec("UPDATE kv SET v = ? WHERE k = ?", val, key)
		}
	})
}

func init() {
	Router.HandleFunc("/kv/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetKV(mux.Vars(r)["key"])))
	}).Methods("GET")

	Router.HandleFunc("/kv/{key}", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		SetKV(mux.Vars(r)["key"], r.PostForm.Get("val"))
	}).Methods("POST")
}
