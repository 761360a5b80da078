// Package api exposes the request engine over JSON so a browser front end
// can drive it.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/codec"
	"github.com/unkn0wn-root/reststudio/internal/executor"
	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/vars"
)

type Deps struct {
	Executor *executor.Executor
	Vars     *vars.Store
	History  *history.Synchronizer
	// Notifier receives every notice next to the per-request collector.
	Notifier notify.Notifier
	Logger   logrus.FieldLogger
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer

	Locale             string
	DefaultEnvironment string
}

type server struct {
	Deps
	log      logrus.FieldLogger
	notifier notify.Notifier
}

// NewRouter creates the HTTP handler for the whole API. To mount it under
// a prefix, build a subrouter and call PopulateRouter instead.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	PopulateRouter(r, d)
	return r
}

// PopulateRouter adds every route to r. r must match on the encoded path
// (UseEncodedPath) so escaped slashes inside a shared route stay in their
// segment.
func PopulateRouter(r *mux.Router, d Deps) {
	s := &server{Deps: d, log: d.Logger, notifier: d.Notifier}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.Locale == "" {
		s.Locale = codec.DefaultLocale
	}
	r.Use(accessLog(s.log))

	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	r.HandleFunc("/v1/send", s.handle(s.send)).Methods(http.MethodPost).Name("send")
	r.HandleFunc("/v1/codegen", s.handle(s.codegen)).Methods(http.MethodPost).Name("codegen")
	r.HandleFunc("/v1/languages", s.handle(s.languages)).Methods(http.MethodGet).Name("languages")
	r.HandleFunc("/v1/routes", s.handle(s.encodeRoute)).Methods(http.MethodPost).Name("routes")
	r.HandleFunc("/v1/import/curl", s.handle(s.importCurl)).Methods(http.MethodPost).Name("import-curl")

	r.HandleFunc("/v1/environments", s.handle(s.listEnvironments)).Methods(http.MethodGet).Name("environments")
	r.HandleFunc("/v1/environments/import", s.importEnvironment).Methods(http.MethodPost)
	env := "/v1/environments/{name}"
	r.HandleFunc(env, s.handle(s.getEnvironment)).Methods(http.MethodGet).Name("environment")
	r.HandleFunc(env, s.handle(s.putEnvironment)).Methods(http.MethodPut)
	r.HandleFunc(env, s.handle(s.deleteEnvironment)).Methods(http.MethodDelete)
	r.HandleFunc(env+"/rename", s.handle(s.renameEnvironment)).Methods(http.MethodPost)
	r.HandleFunc(env+"/clear", s.handle(s.clearEnvironment)).Methods(http.MethodPost)
	r.HandleFunc(env+"/export", s.exportEnvironment).Methods(http.MethodGet)
	r.HandleFunc(env+"/variables/{key}", s.handle(s.setVariable)).Methods(http.MethodPut)
	r.HandleFunc(env+"/variables/{key}", s.handle(s.removeVariable)).Methods(http.MethodDelete)

	r.HandleFunc("/v1/history", s.handle(s.listHistory)).Methods(http.MethodGet).Name("history")
	r.HandleFunc("/v1/history/{id}", s.handle(s.getHistory)).Methods(http.MethodGet).Name("history-record")

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	shared := "/{locale}/" + codec.RouteSegment + "/{method}/{url}"
	r.HandleFunc(shared, s.handle(s.decodeRoute)).Methods(http.MethodGet).Name("shared")
	r.HandleFunc(shared+"/{body}", s.handle(s.decodeRoute)).Methods(http.MethodGet)
}
