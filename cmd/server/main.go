package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courierchat/courier/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	configPath := flag.String("config", "courier.toml", "Path to config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	httpPort := flag.Int("http-port", -1, "WebSocket/metrics port (overrides config when set)")
	logFile := flag.String("log-file", "", "Path to the server log file (overrides config)")
	interval := flag.Int("interval", 0, "Delivery interval in seconds (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Courier Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found); environment
	// overrides are applied inside LoadConfig, flags win over both.
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		config.Server.TCPPort = *port
	}
	if *httpPort >= 0 {
		config.Server.HTTPPort = *httpPort
	}
	if *logFile != "" {
		config.Server.LogFile = *logFile
	}
	if *interval > 0 {
		config.Delivery.IntervalSeconds = *interval
	}

	srv, err := server.NewServer(config.ToServerConfig())
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if *debug {
		srv.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	log.Printf("Config: %s", *configPath)
	log.Printf("Delivery interval: %s", time.Duration(config.Delivery.IntervalSeconds)*time.Second)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Block until a signal arrives or the server stops itself (the
	// last-user-disconnected policy).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
		srv.Stop()
	case <-srv.Done():
	}

	<-srv.Done()
	log.Printf("Shutdown complete")
}
