package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/WindOfMind/discussions-tcp-server/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	configPath := flag.String("config", "~/.discussions/config.toml", "Path to config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	httpPort := flag.Int("http-port", -1, "HTTP port for websocket + metrics, 0 disables (overrides config)")
	sshPort := flag.Int("ssh-port", -1, "SSH port, 0 disables (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Discussions Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	serverConfig := config.ToServerConfig()

	// Command-line flags override config file
	if *port != 0 {
		serverConfig.TCPPort = *port
	}
	if *httpPort >= 0 {
		serverConfig.HTTPPort = *httpPort
	}
	if *sshPort >= 0 {
		serverConfig.SSHPort = *sshPort
	}

	srv := server.NewServer(serverConfig, *configPath)
	srv.SetMetrics(server.NewMetrics())

	if *debug {
		srv.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down...", sig)

	if err := srv.Stop(); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
}
