// ABOUTME: Entry point for the stockdeck server and its operator commands
// ABOUTME: serve runs the HTTP service; the other commands are operator helpers

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/stockdeck/internal/client"
	"github.com/2389/stockdeck/internal/config"
	"github.com/2389/stockdeck/internal/server"
	"github.com/2389/stockdeck/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _             _       _           _
 ___| |_ ___   ___| | ____| | ___  ___| | __
/ __| __/ _ \ / __| |/ / _' |/ _ \/ __| |/ /
\__ \ || (_) | (__|   < (_| |  __/ (__|   <
|___/\__\___/ \___|_|\_\__,_|\___|\___|_|\_\
`

// Credentials for commands that log in to a running server.
const (
	envEmail  = "STOCKDECK_EMAIL"
	envSecret = "STOCKDECK_SECRET"
)

func usage() {
	fmt.Println("Usage: stockdeck <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve           Start the server")
	fmt.Println("  init            Create a new config file interactively")
	fmt.Println("  health          Check server readiness")
	fmt.Println("  accounts        Show the number of registered accounts")
	fmt.Println("  whoami          Log in and show the session the server reports")
	fmt.Println("  quote SYMBOL    Log in and print one stock ($" + envEmail + ", $" + envSecret + ")")
	fmt.Println()
	fmt.Println("The config file is read from $" + config.EnvConfigPath + " or " + config.DefaultPath())
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "health":
		err = runHealth(ctx)
	case "accounts":
		err = runAccounts(ctx)
	case "whoami":
		err = runWhoami(ctx)
	case "quote":
		err = runQuote(ctx, os.Args[2:])
	case "version", "--version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Symbols:   %s\n", strings.Join(cfg.Market.Symbols, " "))

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting stockdeck",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// serverURL is the base URL CLI helpers use to reach a local server.
func serverURL(cfg *config.Config) (string, error) {
	if cfg.Server.HTTPAddr == "" {
		return "", errors.New("server.http_addr is not set; CLI helpers need a TCP address")
	}
	scheme := "http"
	if cfg.Server.SecureCookies {
		scheme = "https"
	}
	return scheme + "://" + cfg.Server.HTTPAddr, nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	base, err := serverURL(cfg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health/ready", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println("healthy")
	return nil
}

func runAccounts(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	count, err := s.CountAccounts(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d account(s) in %s\n", count, cfg.Database.Path)
	return nil
}

// login opens a client session with the credentials from the environment.
// Callers should Logout when done.
func login(ctx context.Context) (*client.Session, error) {
	email, secret := os.Getenv(envEmail), os.Getenv(envSecret)
	if email == "" || secret == "" {
		return nil, fmt.Errorf("%s and %s must be set", envEmail, envSecret)
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	base, err := serverURL(cfg)
	if err != nil {
		return nil, err
	}

	sess, err := client.New(base)
	if err != nil {
		return nil, err
	}
	if _, err := sess.Login(ctx, email, secret); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return sess, nil
}

func runWhoami(ctx context.Context) error {
	sess, err := login(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Logout(context.WithoutCancel(ctx)) }()

	state, err := sess.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	_, user := sess.State()
	if state != client.StateAuthenticated || user == nil {
		return fmt.Errorf("server reports session as %s", state)
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("%s <%s>\n", user.DisplayName, user.Email)
	return nil
}

func runQuote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: stockdeck quote SYMBOL")
	}

	sess, err := login(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Logout(context.WithoutCancel(ctx)) }()

	d, err := sess.Stock(ctx, args[0])
	if err != nil {
		return err
	}

	trend := color.New(color.FgGreen)
	if d.Change < 0 {
		trend = color.New(color.FgRed)
	}

	fmt.Printf("%s  %s\n", color.New(color.Bold).Sprint(d.Symbol), d.Name)
	fmt.Printf("  Price:  %.2f ", d.Price)
	trend.Printf("%+.2f (%+.2f%%)\n", d.Change, d.PercentChange)
	fmt.Printf("  Range:  %.2f - %.2f\n", d.DayLow, d.DayHigh)
	if d.Exchange != "" {
		fmt.Printf("  Market: %s\n", d.Exchange)
	}
	return nil
}

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr         string
	DatabasePath     string
	JWTSecret        string
	APIKey           string
	TailscaleEnabled bool
	TailscaleHost    string
	LogLevel         string
	LogFormat        string
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("stockdeck configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	var a initAnswers
	a.JWTSecret = secret

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Database Configuration ---")
	a.DatabasePath = prompt(reader, "SQLite database path", config.DefaultDatabasePath)

	fmt.Println("\n--- Market Data ---")
	a.APIKey = prompt(reader, "Finnhub API key (leave empty to use ${FINNHUB_API_KEY})", "")

	fmt.Println("\n--- Tailscale Configuration ---")
	a.TailscaleEnabled = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TailscaleHost = prompt(reader, "Tailscale hostname", "stockdeck")
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", config.DefaultLogLevel)
	a.LogFormat = prompt(reader, "Log format (text/json)", config.DefaultLogFormat)

	content := renderConfig(a)
	if err := checkConfig(content); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the signing secret.
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  %s=%s stockdeck serve\n", config.EnvConfigPath, outputFile)

	return nil
}

// generateSecret returns a random base64 signing secret.
func generateSecret() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func renderConfig(a initAnswers) string {
	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = "${FINNHUB_API_KEY}"
	}

	var b strings.Builder
	b.WriteString("# stockdeck configuration\n")
	b.WriteString("# Generated by stockdeck init\n\n")

	b.WriteString("server:\n")
	if !a.TailscaleEnabled {
		fmt.Fprintf(&b, "  http_addr: %q\n", a.HTTPAddr)
	}
	b.WriteString("  secure_cookies: false\n\n")

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", a.DatabasePath)

	b.WriteString("auth:\n")
	fmt.Fprintf(&b, "  jwt_secret: %q\n\n", a.JWTSecret)

	b.WriteString("market:\n")
	fmt.Fprintf(&b, "  api_key: %q\n", apiKey)
	b.WriteString("  cache_ttl: \"15s\"\n\n")

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.TailscaleEnabled)
	if a.TailscaleEnabled {
		fmt.Fprintf(&b, "  hostname: %q\n", a.TailscaleHost)
		b.WriteString("  https: true\n")
	}
	b.WriteString("\n")

	b.WriteString("rate_limit:\n")
	fmt.Fprintf(&b, "  requests_per_minute: %d\n", config.DefaultRequestsPerMinute)
	fmt.Fprintf(&b, "  burst: %d\n\n", config.DefaultBurst)

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", a.LogFormat)

	b.WriteString("metrics:\n")
	b.WriteString("  enabled: false\n")
	fmt.Fprintf(&b, "  path: %q\n", config.DefaultMetricsPath)

	return b.String()
}

func checkConfig(content string) error {
	cfg, err := config.Parse([]byte(content), config.FormatYAML)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
