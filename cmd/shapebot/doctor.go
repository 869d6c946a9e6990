package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"shapebot/internal/config"
	"shapebot/internal/store"

	"github.com/spf13/cobra"
)

type doctorReport struct {
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your ShapeBot installation",
		Long: `Verifies that the configuration, the dedicated-channel database and the
relay endpoint are set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("ShapeBot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var r doctorReport

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'shapebot init' to create a default configuration.\n")
				return nil
			}
			r.pass("Config file", cfgPath)

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", r.passed, r.failed)
				return nil
			}
			r.pass("Config validation", "valid")

			// 3. Required runtime settings
			if err := config.CheckRuntime(cfg); err != nil {
				r.fail("Runtime settings", err.Error())
			} else {
				r.pass("Runtime settings", "discord token and relay URL set")
			}

			// 4. Database opens and migrates
			if v, err := checkDatabase(cfg.Store.DBPath); err != nil {
				r.fail("Database", err.Error())
			} else {
				r.pass("Database", fmt.Sprintf("%s (schema v%d)", cfg.Store.DBPath, v))
			}

			// 5. Relay reachable
			if err := checkReachable(cfg.Relay.URL); err != nil {
				r.warn("Relay", err.Error())
			} else {
				r.pass("Relay", cfg.Relay.URL)
			}

			// 6. Optional endpoints
			if cfg.Tools.Image.URL == "" || strings.HasPrefix(cfg.Tools.Image.URL, "${") {
				r.warn("Image tool", "no endpoint configured; imageGenerate replies will fail")
			} else if err := checkReachable(cfg.Tools.Image.URL); err != nil {
				r.warn("Image tool", err.Error())
			} else {
				r.pass("Image tool", cfg.Tools.Image.URL)
			}

			if cfg.Metrics.Enabled {
				if err := checkListen(cfg.Metrics.Addr); err != nil {
					r.warn("Metrics address", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
				} else {
					r.pass("Metrics address", cfg.Metrics.Addr+" available")
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
			if r.failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running ShapeBot.\n")
				return fmt.Errorf("%d check(s) failed", r.failed)
			}
			if r.warned > 0 {
				fmt.Printf("\nShapeBot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! ShapeBot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) (int, error) {
	s, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.SchemaVersion()
}

// checkReachable dials the host of rawURL without sending a request.
func checkReachable(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid URL %q", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", u.Host, err)
	}
	conn.Close()
	return nil
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
