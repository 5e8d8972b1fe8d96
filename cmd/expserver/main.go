package main

import (
	"flag"
	"log"
	"net/http"

	socketio "github.com/googollee/go-socket.io"

	"github.com/MingSun-Tse/smilepruning/app"
	"github.com/MingSun-Tse/smilepruning/smile"

	_ "github.com/MingSun-Tse/smilepruning/methods"
)

// Standalone experiment server: browse runs, metrics, and the
// checkpoint catalog of a database that drivers wrote.
func main() {
	addr := flag.String("addr", ":8080", "bind address")
	dbPath := flag.String("db", "./smilepruning.sqlite3", "experiment database path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	smile.SeedRand()

	app.Config.Addr = *addr
	app.Config.DBPath = *dbPath
	app.InitDB(app.Config.DBPath)

	server, err := socketio.NewServer(nil)
	if err != nil {
		panic(err)
	}
	server.OnConnect("/", func(s socketio.Conn) error {
		return nil
	})
	for _, f := range app.SetupFuncs {
		f(server)
	}

	go server.Serve()
	defer server.Close()
	http.Handle("/socket.io/", server)
	http.Handle("/", app.Router)
	log.Printf("starting on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		panic(err)
	}
}
