// Command river runs the River reverse proxy: it loads a KDL or TOML
// configuration, binds every configured Service and file server, serves
// them until asked to stop, and supports zero-downtime restarts on SIGQUIT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/river-proxy/river/internal/config"
	"github.com/river-proxy/river/internal/hotreload"
	"github.com/river-proxy/river/internal/service"
)

func main() {
	cmd := config.NewRootCommand(run)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags config.CLIFlags) error {
	conf, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if conf.ValidateOnly {
		fmt.Println("configuration OK")
		return nil
	}

	var inherited map[string]net.Listener
	if conf.UpgradeReceiver {
		ctx, cancel := context.WithTimeout(context.Background(), hotreload.HandoffTimeout)
		inherited, err = hotreload.ReceiveListeners(ctx, conf.UpgradeSocket)
		cancel()
		if err != nil {
			return fmt.Errorf("receiving listeners from outgoing process: %w", err)
		}
	}

	sup, err := service.Build(conf, inherited)
	if err != nil {
		return fmt.Errorf("starting services: %w", err)
	}

	if err := hotreload.WritePIDFile(conf.PidFile); err != nil {
		return fmt.Errorf("writing pidfile: %w", err)
	}
	defer func() {
		if err := hotreload.RemovePIDFile(conf.PidFile); err != nil {
			slog.Warn("removing pidfile", "error", err)
		}
	}()

	if addr, ok := metricsAddr(conf); ok {
		go serveMetrics(sup.Metrics.Handler(), addr)
	}

	serveErrs := make(chan error, 8)
	sup.Serve(serveErrs)
	slog.Info("river started", "services", len(conf.Services), "file_servers", len(conf.FileServers))

	ctrl := &hotreload.Controller{UpgradeSocket: conf.UpgradeSocket, PIDFile: conf.PidFile}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	for {
		select {
		case err := <-serveErrs:
			slog.Error("a listener failed", "error", err)
			shutdown(sup)
			return err

		case sig := <-sigCh:
			switch {
			case sig == syscall.SIGQUIT && conf.UpgradeSocket != "":
				slog.Info("received SIGQUIT: attempting hot reload")
				ctx, cancel := context.WithTimeout(context.Background(), hotreload.HandoffTimeout)
				err := ctrl.Reload(ctx, sup)
				cancel()
				if err != nil {
					slog.Error("hot reload failed, continuing to serve", "error", err)
					continue
				}
				slog.Info("hot reload handoff complete, draining and exiting")
				shutdown(sup)
				return nil

			default:
				slog.Info("received shutdown signal, draining", "signal", sig.String())
				shutdown(sup)
				return nil
			}
		}
	}
}

func shutdown(sup *service.Supervisor) {
	ctx, cancel := context.WithTimeout(context.Background(), service.DrainTimeout)
	defer cancel()
	sup.Shutdown(ctx)
}

// metricsAddr decides whether River should expose a Prometheus scrape
// endpoint. Only file servers and proxying Services have listeners of
// their own in the present configuration surface, so metrics ride on a
// fixed loopback port rather than a configured Listener.
func metricsAddr(conf *config.Config) (string, bool) {
	if len(conf.Services) == 0 && len(conf.FileServers) == 0 {
		return "", false
	}
	return "127.0.0.1:9100", true
}

func serveMetrics(handler http.Handler, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics endpoint stopped", "error", err)
	}
}
