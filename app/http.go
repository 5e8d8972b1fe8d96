package app

import (
	"net/http"
	"sort"

	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/mux"

	"github.com/MingSun-Tse/smilepruning/models"
	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/smile"
)

var SetupFuncs []func(*socketio.Server)
var Router = mux.NewRouter()

func init() {
	Router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		smile.JsonResponse(w, map[string]string{"app": "smilepruning"})
	}).Methods("GET")

	Router.HandleFunc("/architectures", func(w http.ResponseWriter, r *http.Request) {
		var archs []string
		for arch := range models.Builders {
			archs = append(archs, arch)
		}
		sort.Strings(archs)
		smile.JsonResponse(w, archs)
	}).Methods("GET")

	Router.HandleFunc("/methods", func(w http.ResponseWriter, r *http.Request) {
		var methods []string
		for method := range pruner.Impls {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		smile.JsonResponse(w, methods)
	}).Methods("GET")
}
