package main

import (
	"github.com/gorilla/mux"
	"github.com/opsbed/fibsvc/cmd/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))
	r.Use(handler.HTTPMetricsMiddleware)

	// No .Methods() restriction on /fibonacci: a disallowed verb must reach
	// the handler so it gets the structured 400 translation.
	r.HandleFunc("/fibonacci", handler.Fibonacci)

	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/config", handler.GetConfig).Methods("GET")
	r.HandleFunc("/config/feature/{feature}", handler.CheckFeature).Methods("GET")

	return r
}
