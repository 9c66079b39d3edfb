// RMI Core Server
//
// Standalone gRPC server hosting one remotable capability set (Greeter)
// over the RMI core. Exposes Prometheus metrics alongside it.
//
// Usage:
//
//	go run ./cmd/rmicore -addr :50051 -metrics-addr :9090
//	go build -o rmicore ./cmd/rmicore && ./rmicore
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/config"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/eventbus"
	"github.com/Minecraftian14/RobotsMakingIcecream/grpctransport"
	"github.com/Minecraftian14/RobotsMakingIcecream/runtime"
)

// Greeter is the one capability set this demo server hosts.
type Greeter interface {
	Greet(name string) string
}

type greeterImpl struct{}

func (greeterImpl) Greet(name string) string { return fmt.Sprintf("hello, %s", name) }

// greeterProxy is the client-side wrapper a peer dialing in would build,
// kept here mainly to document the shape registration expects.
type greeterProxy struct{ *proxy.Handle }

func (p *greeterProxy) Greet(name string) string {
	result, err := p.Invoke(context.Background(), "Greet", name)
	if err != nil {
		return ""
	}
	s, _ := result.(string)
	return s
}

func wrapGreeter(h *proxy.Handle) Greeter { return &greeterProxy{h} }

func main() {
	addr := flag.String("addr", ":50051", "gRPC server address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus /metrics listen address")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP/gRPC trace collector endpoint (tracing disabled if empty)")
	flag.Parse()

	logger := rlog.Std()
	cc := config.DefaultCoreConfig()
	config.SetCoreConfig(cc)

	if *otlpEndpoint != "" {
		shutdownTracer, err := observability.InitTracer("rmicore", *otlpEndpoint)
		if err != nil {
			logger.Warn("rmicore: tracing disabled", "error", err.Error())
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdownTracer(ctx)
			}()
		}
	}

	bus := eventbus.NewInMemoryBus(5*time.Second, logger)
	bus.AddMiddleware(eventbus.NewLoggingMiddleware(logger))

	cfg := runtime.FromCoreConfig(cc)
	cfg.Logger = logger
	cfg.Rendezvous.Notifier = bus
	rt := runtime.New(cfg)

	if _, err := runtime.RegisterRemotable[Greeter](rt, nil, wrapGreeter); err != nil {
		logger.Error("rmicore: failed to register Greeter", "error", err.Error())
		os.Exit(1)
	}
	objectID := rt.Host(greeterImpl{})
	logger.Info("rmicore: hosted Greeter", "object_id", objectID)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("rmicore: serving metrics", "address", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Error("rmicore: metrics server failed", "error", err.Error())
		}
	}()

	transportServer := grpctransport.New(nil, logger).WithNotifier(bus)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- transportServer.Serve(ctx, *addr, runtime.NewHandler(rt)) }()

	logger.Info("rmicore: ready", "address", *addr)
	fmt.Printf("RMI core server running on %s\nPress Ctrl+C to stop\n", *addr)

	select {
	case sig := <-sigCh:
		logger.Info("rmicore: shutdown signal received", "signal", sig.String())
		cancel()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			logger.Error("rmicore: serve failed", "error", err.Error())
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := rt.ShutdownExecutor(shutdownCtx); err != nil {
		logger.Warn("rmicore: runtime shutdown did not finish cleanly", "error", err.Error())
	}
	logger.Info("rmicore: stopped")
}
