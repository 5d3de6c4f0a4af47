// Command server starts the vectorflow dataflow engine's HTTP API server.
//
// Usage:
//
//	server [flags]
//
// Flags:
//
//	-addr string
//	    Server address (default ":8080")
//	-graph string
//	    Path to a JSON graph artifact to load as the base graph (required)
//	-allow-http
//	    Allow plain HTTP artifact fetches (default: HTTPS only)
//
// The server exposes:
//
//	POST /v1/url      - run Scheduler.Url, streaming emitted events as NDJSON
//	GET  /health       - health check
//	GET  /health/live  - liveness probe
//	GET  /health/ready - readiness probe
//	GET  /metrics      - Prometheus metrics
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vectorflow/vectorflow/pkg/config"
	"github.com/vectorflow/vectorflow/pkg/engine"
	"github.com/vectorflow/vectorflow/pkg/server"
	"github.com/vectorflow/vectorflow/pkg/telemetry"
	"github.com/vectorflow/vectorflow/pkg/types"
)

func main() {
	addr := flag.String("addr", ":8080", "server address")
	graphPath := flag.String("graph", "", "path to a JSON graph artifact to load as the base graph")
	allowHTTP := flag.Bool("allow-http", false, "allow plain HTTP artifact fetches")
	flag.Parse()

	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "vectorflow: -graph is required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorflow: read graph: %v\n", err)
		os.Exit(1)
	}

	g, err := types.ParseGraph(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorflow: parse graph: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Production()
	cfg.AllowHTTP = *allowHTTP

	sched, err := engine.New(g, engine.WithConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorflow: create scheduler: %v\n", err)
		os.Exit(1)
	}

	telemetryProvider, err := telemetry.NewProvider(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorflow: create telemetry provider: %v\n", err)
		os.Exit(1)
	}
	telemetry.NewObserver(telemetryProvider).Attach(sched.EventBus())

	serverConfig := server.DefaultConfig()
	serverConfig.Address = *addr

	srv, err := server.New(serverConfig, sched, telemetryProvider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorflow: create server: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		fmt.Printf("vectorflow engine listening on %s\n", *addr)
		fmt.Printf("  POST %s/v1/url\n", *addr)
		fmt.Printf("  GET  %s/health\n", *addr)
		fmt.Printf("  GET  %s/metrics\n", *addr)
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "vectorflow: server error: %v\n", err)
		os.Exit(1)
	case sig := <-sigChan:
		fmt.Printf("\nreceived signal: %v, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "vectorflow: shutdown error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("server stopped")
	}
}
