package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tokenchat/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tokenchat installation",
		Long: `Verifies that the configuration, relay endpoint, collection registry,
and cache database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tokenchat doctor v%s\n\n", version)

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'tokenchat init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n1 passed, 1 failed\n")
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Relay reachable
			if err := checkRelay(cfg.Relay.BaseURL); err != nil {
				printWarn("Relay", fmt.Sprintf("%s: %v", cfg.Relay.BaseURL, err))
				warned++
			} else {
				printPass("Relay", cfg.Relay.BaseURL)
				passed++
			}

			// 4. Identity configured
			switch {
			case cfg.Identity.ID == "":
				printWarn("Identity", "identity.id not set; sends will be rejected")
				warned++
			case len(cfg.Identity.Wallets) == 0 && !cfg.Identity.IsBot:
				printWarn("Identity", "no linked wallets; channels are read-only")
				warned++
			default:
				printPass("Identity", fmt.Sprintf("%s (%d wallet(s))", cfg.Identity.ID, len(cfg.Identity.Wallets)))
				passed++
			}

			// 5. Collections registered
			entries, err := os.ReadDir(cfg.Registry.Dir)
			yamlCount := 0
			if err == nil {
				for _, e := range entries {
					name := e.Name()
					if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
						yamlCount++
					}
				}
			}
			if yamlCount == 0 {
				printWarn("Collections", fmt.Sprintf("no collection files in %s", cfg.Registry.Dir))
				warned++
			} else {
				printPass("Collections", fmt.Sprintf("%d file(s) in %s", yamlCount, cfg.Registry.Dir))
				passed++
			}

			// 6. Cache database writable
			if err := checkDatabase(cfg.Cache.Path); err != nil {
				printFail("Cache database", err.Error())
				failed++
			} else {
				printPass("Cache database", cfg.Cache.Path)
				passed++
			}

			// 7. Metrics port
			if cfg.Metrics.Enabled {
				if err := checkPort(cfg.Metrics.Port); err != nil {
					printWarn("Metrics port", fmt.Sprintf("port %d may be in use: %v", cfg.Metrics.Port, err))
					warned++
				} else {
					printPass("Metrics port", fmt.Sprintf(":%d available", cfg.Metrics.Port))
					passed++
				}
			}

			// 8. Bridge configuration
			if cfg.Bridge.Enabled {
				if cfg.Bridge.Token == "" || cfg.Bridge.ChatID == 0 {
					printFail("Bridge", "enabled but token or chatId missing")
					failed++
				} else {
					printPass("Bridge", "configured")
					passed++
				}
			}

			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running tokenchat.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ntokenchat should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
}

func checkRelay(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("relay.baseUrl not set")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
