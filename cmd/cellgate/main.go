package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/config"
	"github.com/cellgate/cellgate/internal/dashboard"
	"github.com/cellgate/cellgate/internal/monitor"
	"github.com/cellgate/cellgate/internal/proxy"
	"github.com/cellgate/cellgate/internal/server"
	"github.com/cellgate/cellgate/internal/version"
	"github.com/cellgate/cellgate/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("cellgate server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	var serverCfg config.ServerConfig
	if err := viperCfg.UnmarshalKey("server", &serverCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}

	proxyCfg := proxy.DefaultConfig()
	if err := viperCfg.UnmarshalKey("proxy", &proxyCfg); err != nil {
		logger.Fatal("invalid proxy configuration", zap.Error(err))
	}

	monitorCfg := monitor.DefaultConfig()
	if err := viperCfg.UnmarshalKey("monitor", &monitorCfg); err != nil {
		logger.Fatal("invalid monitor configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The forwarder is the only path to the device; everything inbound
	// goes through it.
	fwd := proxy.NewForwarder(proxyCfg, nil, logger.Named("proxy"))
	proxyHandler := proxy.NewHandler(fwd, logger.Named("proxy"))
	logger.Info("gateway proxy initialized",
		zap.String("component", "proxy"),
		zap.String("default_gateway", proxyCfg.DefaultGatewayIP),
	)

	// Background monitor feeds the WebSocket stream.
	mon := monitor.New(monitorCfg, fwd, proxyCfg.DefaultGatewayIP, logger.Named("monitor"))
	wsHandler := ws.NewHandler(mon, logger.Named("ws"))
	mon.OnChange(wsHandler.BroadcastStatus)
	go mon.Run(ctx)

	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		// The server is ready as soon as it can reach its own forwarder
		// config; an offline gateway is data, not unreadiness.
		return nil
	})

	srv := server.New(
		serverCfg.Addr(),
		logger.Named("server"),
		readyCheck,
		dashboard.Handler(),
		serverCfg.DevMode,
		proxyHandler,
		wsHandler,
	)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("cellgate server ready", zap.String("addr", serverCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("cellgate server stopped")
}
