// Package main (cmd/httpserver) runs the storage HTTP server.
//
// Stores come from a YAML file, from repeated --store flags, or both:
//
//	storage-server --config=stores.yaml \
//	    --store scratch=memory://scratch \
//	    --listen-addr=0.0.0.0:8080
//
// The server shuts down gracefully on SIGINT/SIGTERM and exposes health
// checks, Prometheus metrics on --metrics-addr and, with --pprof, profiling
// endpoints.
package main
