// ABOUTME: Entry point for the Sendspin synchronized player
// ABOUTME: Parses CLI flags over an optional config file and runs the player with a TUI or streaming logs
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/sendspin-player/internal/artwork"
	"github.com/Sendspin/sendspin-player/internal/config"
	"github.com/Sendspin/sendspin-player/internal/discovery"
	"github.com/Sendspin/sendspin-player/internal/metrics"
	"github.com/Sendspin/sendspin-player/internal/ui"
	"github.com/Sendspin/sendspin-player/internal/version"
	"github.com/Sendspin/sendspin-player/pkg/sendspin"
)

var (
	configPath    = flag.String("config", "", "YAML config file")
	serverAddr    = flag.String("server", "", "Manual server address or ws:// URL (skip mDNS)")
	name          = flag.String("name", "", "Player friendly name (default: hostname-sendspin-player)")
	clientID      = flag.String("client-id", "", "Stable client id (default: random UUID)")
	volume        = flag.Int("volume", 100, "Initial volume 0-100")
	playoutOffset = flag.Int("playout-offset-ms", 0, "Playout offset in milliseconds, -1000 to 1000")
	logFile       = flag.String("log-file", "sendspin-player.log", "Log file path")
	metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	discoverWait  = flag.Duration("discovery-timeout", 10*time.Second, "How long to wait for mDNS discovery")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs    = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Determine if we should use TUI or streaming logs
	useTUI := !cfg.Logging.Stream

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := cfg.Player.Name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-sendspin-player", hostname)
	}
	log.Printf("Starting %s %s: %s", version.Product, version.Version, playerName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverAddress := cfg.Player.Server
	if serverAddress == "" {
		serverAddress, err = discoverServer(ctx, cfg.Discovery.GetTimeout())
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		m = metrics.NewMetrics()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	art, err := artwork.NewDownloader(cfg.Player.ArtworkDir)
	if err != nil {
		log.Printf("Artwork disabled: %v", err)
	}

	// Assigned before Connect, so callbacks never see it change
	var tui *ui.TUI

	player, err := sendspin.NewPlayer(sendspin.PlayerConfig{
		ServerAddr:     serverAddress,
		ClientID:       cfg.Player.ClientID,
		PlayerName:     playerName,
		Volume:         &cfg.Player.Volume,
		PlayoutOffset:  cfg.Player.GetPlayoutOffset(),
		BufferCapacity: cfg.Player.BufferCapacity,
		Tuning:         cfg.Playout.Tuning(),
		DeviceInfo: sendspin.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		OnStateChange: func(state sendspin.PlayerState) {
			if tui != nil {
				tui.OnStateChange(state)
			}
		},
		OnMetadata: func(meta sendspin.Metadata) {
			log.Printf("Metadata: %s - %s (%s)", meta.Artist, meta.Title, meta.Album)
			if tui != nil {
				tui.OnMetadata(meta)
			}
			if art != nil && art.Claim(meta.ArtworkURL) {
				go fetchArtwork(ctx, art, meta.ArtworkURL, tui)
			}
		},
		OnStats: func(stats sendspin.PlayerStats) {
			if m != nil {
				m.Update(stats)
			}
		},
		OnError: func(err error) {
			log.Printf("Player error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	if useTUI {
		tui = ui.New(player)
		tui.Start()
	}

	// Run reconnects with the same parameters whenever the connection drops
	runCtx, cancelRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- player.Run(runCtx) }()
	log.Printf("Connecting to server: %s", serverAddress)

	// Wait for quit signal from TUI or OS
	var tuiDone <-chan struct{}
	if tui != nil {
		tuiDone = tui.Done()
	}
	select {
	case <-tuiDone:
		log.Printf("Received quit from TUI")
		if err := tui.Err(); err != nil {
			log.Printf("TUI error: %v", err)
		}
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
	case err := <-runDone:
		log.Printf("Player stopped running: %v", err)
		runDone = nil
	}

	// Stop reconnecting before saying goodbye
	cancelRun()
	if runDone != nil {
		<-runDone
	}

	if err := player.Close("shutdown"); err != nil {
		log.Printf("Error closing player: %v", err)
	}
	if tui != nil {
		tui.Stop()
	}

	log.Printf("Player stopped")
}

// loadConfig reads the config file when given and applies explicitly set flags on top
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Player.Server = *serverAddr
		case "name":
			cfg.Player.Name = *name
		case "client-id":
			cfg.Player.ClientID = *clientID
		case "volume":
			cfg.Player.Volume = *volume
		case "playout-offset-ms":
			cfg.Player.PlayoutOffsetMs = *playoutOffset
		case "log-file":
			cfg.Logging.File = *logFile
		case "metrics-addr":
			cfg.Metrics.Address = *metricsAddr
		case "discovery-timeout":
			cfg.Discovery.TimeoutSec = int(discoverWait.Seconds())
		case "no-tui", "stream-logs":
			cfg.Logging.Stream = *noTUI || *streamLogs
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// discoverServer browses mDNS until a server answers or the timeout expires
func discoverServer(ctx context.Context, timeout time.Duration) (string, error) {
	log.Printf("Starting server discovery...")

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server, err := discovery.Discover(ctx, discovery.Config{})
	if err != nil {
		return "", err
	}
	log.Printf("Discovered server %s at %s", server.Name, server.URL())
	return server.URL(), nil
}

// fetchArtwork caches the artwork and hands its path to the TUI
func fetchArtwork(ctx context.Context, art *artwork.Downloader, url string, tui *ui.TUI) {
	path, err := art.Download(ctx, url)
	if err != nil {
		log.Printf("Artwork: %v", err)
		return
	}
	if tui != nil {
		tui.OnArtwork(path)
	}
}
