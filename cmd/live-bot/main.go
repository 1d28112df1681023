package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantara-labs/falcon/internal/bot"
	"github.com/quantara-labs/falcon/internal/exchange"
	"github.com/quantara-labs/falcon/internal/monitoring"
	"github.com/quantara-labs/falcon/pkg/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., btc_5.json)")
		envFile    = flag.String("env", ".env", "Environment file path")
		demo       = flag.Bool("demo", true, "Use demo trading environment - paper trading")
		paper      = flag.Bool("paper", false, "Run against the in-process paper exchange, no API keys needed")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("Please specify a config file with -config flag")
	}

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: Could not load .env file (%v), checking environment variables...", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ex, err := buildExchange(cfg, *demo, *paper)
	if err != nil {
		log.Fatal(err)
	}

	b, err := bot.NewBot(cfg, ex)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	startMetricsServer(cfg, b)

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	fmt.Printf("Bot running on %s (demo: %v, paper: %v)\n", ex.GetName(), *demo, *paper)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutdown signal received...")

	b.Stop()
	fmt.Println("Bot stopped")
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}

func buildExchange(cfg *config.Config, demo, paper bool) (exchange.Exchange, error) {
	if paper {
		quote := cfg.Live.QuoteAsset
		if quote == "" {
			quote = "USDT"
		}
		return exchange.NewPaperExchange(quote, 10000), nil
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("missing credentials: %w", err)
	}
	return exchange.NewBybitExchange(exchange.BybitConfig{
		APIKey:    creds.APIKey,
		APISecret: creds.APISecret,
		Testnet:   cfg.Live.Testnet,
		Demo:      demo || cfg.Live.Demo,
	}), nil
}

// startMetricsServer exposes /metrics and /healthz when an address is
// configured. Failures here are logged, not fatal; trading works without
// the observability endpoint.
func startMetricsServer(cfg *config.Config, b *bot.Bot) {
	addr := cfg.Live.MetricsAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())
	mux.Handle("/healthz", b.Health())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	fmt.Printf("Metrics on http://%s/metrics, health on http://%s/healthz\n", addr, addr)
}
