// Package main is the entrypoint for the FSAuth agent CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/faerion/fsauth/internal/audit"
	"github.com/faerion/fsauth/internal/authclient"
	"github.com/faerion/fsauth/internal/config"
	"github.com/faerion/fsauth/internal/identity"
	"github.com/faerion/fsauth/internal/sysinfo"
	"github.com/faerion/fsauth/internal/transport"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fsauth-agent",
		Short: "FSAuth agent - Faerion licensing client",
		Long: `FSAuth Agent is the client-side companion for applications licensed
through a Faerion backend. It authenticates license and subscription keys,
keeps a durable local audit trail, and reports machine inventory.

Run 'fsauth-agent register' to connect to a server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRegisterCmd(),
		newConfigCmd(),
		newInitCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newValidateCmd(),
		newInfoCmd(),
		newCollectCmd(),
		newLogsCmd(),
		newStartCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FSAuth Agent %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var serverURL string
	var appName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this agent with a Faerion server",
		Long: `Register this agent with a Faerion licensing server.

You will be prompted for the application secret issued alongside your
application on the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(serverURL, appName)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Faerion server URL (required)")
	cmd.Flags().StringVar(&appName, "app", "", "Application name")
	_ = cmd.MarkFlagRequired("server")

	return cmd
}

func runRegister(serverURL, appName string) error {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https scheme")
	}

	fmt.Print("Enter app secret: ")
	reader := bufio.NewReader(os.Stdin)
	appSecret, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read app secret: %w", err)
	}
	appSecret = strings.TrimSpace(appSecret)

	if appSecret == "" {
		return fmt.Errorf("app secret cannot be empty")
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.ServerURL = strings.TrimSuffix(serverURL, "/")
	cfg.AppSecret = appSecret
	if appName != "" {
		cfg.AppName = appName
	}
	if cfg.InstallID == "" {
		cfg.InstallID = uuid.New().String()
	}

	if err := cfg.SaveDefault(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Configuration saved to %s\n", config.DefaultConfigPath())
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Println("Registration complete. Run 'fsauth-agent init' to verify connection.")

	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage agent configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetServerCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Printf("Config file: %s\n", config.DefaultConfigPath())
			fmt.Println()

			if !cfg.IsConfigured() {
				fmt.Println("Agent is not configured. Run 'fsauth-agent register' to set up.")
				return nil
			}

			fmt.Printf("Server URL: %s\n", cfg.ServerURL)
			fmt.Printf("App secret: %s\n", maskSecret(cfg.AppSecret))
			if cfg.AppName != "" {
				fmt.Printf("App name:   %s\n", cfg.AppName)
			}
			if cfg.Username != "" {
				fmt.Printf("Username:   %s\n", cfg.Username)
			}
			fmt.Printf("Data dir:   %s\n", cfg.EffectiveDataDir())

			return nil
		},
	}
}

func newConfigSetServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the server URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := args[0]

			parsed, err := url.Parse(serverURL)
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("server URL must use http or https scheme")
			}

			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			cfg.ServerURL = strings.TrimSuffix(serverURL, "/")

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Printf("Server URL set to: %s\n", cfg.ServerURL)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Announce the application to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			resp, err := client.Init(ctx, Version)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}

			if !resp.Success {
				fmt.Printf("Server rejected init: %s\n", resp.Message)
				return fmt.Errorf("init rejected by server")
			}

			fmt.Printf("Connected to server. App: %s\n", resp.AppName)
			if resp.UpdateRequired {
				fmt.Printf("Update required: server expects version %s\n", resp.Version)
			}
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	var licenseKey string
	var subscriptionKey string
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a license or subscription key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if licenseKey == "" && subscriptionKey == "" {
				return fmt.Errorf("one of --license or --subscription is required")
			}
			if licenseKey != "" && subscriptionKey != "" {
				return fmt.Errorf("--license and --subscription are mutually exclusive")
			}

			client, cfg, err := buildClient()
			if err != nil {
				return err
			}

			if username == "" {
				username = cfg.Username
			}

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			var resp authclient.LoginResponse
			if licenseKey != "" {
				resp, err = client.LoginWithLicense(ctx, licenseKey, username)
			} else {
				resp, err = client.LoginWithSubscription(ctx, subscriptionKey, username)
			}
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			if !resp.Success {
				fmt.Printf("Login failed: %s\n", resp.Message)
				return fmt.Errorf("authentication rejected by server")
			}

			fmt.Println("Login successful.")
			fmt.Printf("Session: %s\n", client.SessionID())

			// Remember the working key for later commands.
			cfg.LicenseKey = licenseKey
			cfg.SubscriptionKey = subscriptionKey
			if username != "" {
				cfg.Username = username
			}
			if err := cfg.SaveDefault(); err != nil {
				fmt.Printf("Warning: could not save config: %v\n", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&licenseKey, "license", "", "License key")
	cmd.Flags().StringVar(&subscriptionKey, "subscription", "", "Subscription key")
	cmd.Flags().StringVar(&username, "user", "", "Username to report (default: from config)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored license and subscription keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			cfg.LicenseKey = ""
			cfg.SubscriptionKey = ""

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Println("Stored keys cleared.")
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var subscriptionKey string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a subscription key without logging in",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := buildClient()
			if err != nil {
				return err
			}

			if subscriptionKey == "" {
				subscriptionKey = cfg.SubscriptionKey
			}
			if subscriptionKey == "" {
				return fmt.Errorf("no subscription key: pass --subscription or login first")
			}

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			resp, err := client.ValidateSubscription(ctx, subscriptionKey)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			if !resp.Success {
				fmt.Printf("Subscription invalid: %s\n", resp.Message)
				return fmt.Errorf("subscription rejected by server")
			}

			fmt.Printf("Status: %s\n", resp.Status)
			if resp.ExpiryDate != "" {
				fmt.Printf("Expires: %s\n", resp.ExpiryDate)
			}
			if client.IsSubscriptionValid(ctx, subscriptionKey) {
				fmt.Println("Subscription is valid.")
			} else {
				fmt.Println("Subscription is NOT valid (inactive or expired).")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subscriptionKey, "subscription", "", "Subscription key (default: from config)")

	return cmd
}

func newInfoCmd() *cobra.Command {
	var subscriptionKey string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show subscription details",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := buildClient()
			if err != nil {
				return err
			}

			if subscriptionKey == "" {
				subscriptionKey = cfg.SubscriptionKey
			}
			if subscriptionKey == "" {
				return fmt.Errorf("no subscription key: pass --subscription or login first")
			}

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			resp, err := client.GetSubscription(ctx, subscriptionKey)
			if err != nil {
				return fmt.Errorf("get subscription: %w", err)
			}

			if !resp.Success {
				fmt.Printf("Server rejected request: %s\n", resp.Message)
				return fmt.Errorf("subscription info unavailable")
			}

			fmt.Printf("Tier:              %s\n", orUnknown(resp.Tier))
			fmt.Printf("Max devices:       %d\n", resp.MaxDevices)
			fmt.Printf("Max apps:          %d\n", resp.MaxApps)
			fmt.Printf("Priority support:  %v\n", resp.PrioritySupport)
			fmt.Printf("Advanced features: %v\n", resp.AdvancedFeatures)
			fmt.Printf("Expires:           %s\n", orUnknown(resp.ExpiryDate))

			return nil
		},
	}

	cmd.Flags().StringVar(&subscriptionKey, "subscription", "", "Subscription key (default: from config)")

	return cmd
}

func newCollectCmd() *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect machine inventory",
		Long: `Collects the machine inventory snapshot (OS, CPU, memory, disk, running
processes) and stores it locally. With --send the snapshot is also uploaded
to the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := buildClient()
			if err != nil {
				return err
			}

			logger := newLogger()
			store := audit.NewStore(cfg.EffectiveDataDir(), logger)
			collector := sysinfo.NewCollector(identity.NewResolver())

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			snap := collector.Collect(ctx)

			fmt.Printf("Hostname:  %s\n", snap.Hostname)
			fmt.Printf("HWID:      %s\n", snap.HWID)
			fmt.Printf("OS:        %s\n", snap.OSVersion)
			fmt.Printf("CPU:       %s\n", snap.CPUName)
			fmt.Printf("Memory:    %s\n", snap.MemoryAmount)
			fmt.Printf("Disk:      %s\n", snap.DiskSpace)
			fmt.Printf("Processes: %s\n", snap.RunningProcesses)

			if err := store.SavePCInfo(snap); err != nil {
				return fmt.Errorf("save pc info: %w", err)
			}
			fmt.Println("\nSnapshot stored locally.")

			if send {
				if err := client.SendPCInfo(ctx, snap); err != nil {
					return fmt.Errorf("send pc info: %w", err)
				}
				fmt.Println("Snapshot sent to server.")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&send, "send", false, "Upload the snapshot to the server")

	return cmd
}

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and manage the local audit trail",
	}

	cmd.AddCommand(
		newLogsShowCmd(),
		newLogsActionsCmd(),
		newLogsClearCmd(),
		newLogsSyncCmd(),
	)

	return cmd
}

func newLogsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			entries := store.Entries()
			if len(entries) == 0 {
				fmt.Println("No audit events stored.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-18s %-12s %s\n", e.Timestamp, e.EventType, e.Username, e.Description)
			}
			fmt.Printf("\n%d events\n", len(entries))
			return nil
		},
	}
}

func newLogsActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Show stored user actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			actions := store.UserActions()
			if len(actions) == 0 {
				fmt.Println("No user actions stored.")
				return nil
			}

			for _, a := range actions {
				fmt.Printf("%s  %-24s %-12s %s\n", a.Timestamp, a.ActionName, a.Result, a.ModuleName)
			}
			fmt.Printf("\n%d actions\n", len(actions))
			return nil
		},
	}
}

func newLogsClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the stored audit events and user actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Clear all stored audit data? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				response, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read response: %w", err)
				}
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			if err := store.ClearAll(); err != nil {
				return fmt.Errorf("clear audit data: %w", err)
			}

			fmt.Println("Audit data cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip confirmation")

	return cmd
}

func newLogsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload stored audit events to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
			defer cancel()

			if err := client.SendLogs(ctx); err != nil {
				return fmt.Errorf("sync logs: %w", err)
			}

			fmt.Println("Audit events uploaded.")
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	var logsCron string
	var inventoryCron string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent daemon",
		Long: `Start the FSAuth agent as a long-running daemon process.

The daemon will:
  - Periodically upload the local audit trail to the server
  - Periodically collect and upload the machine inventory
  - Record session lifecycle events in the audit trail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := buildClient()
			if err != nil {
				return err
			}
			return runDaemon(client, cfg, logsCron, inventoryCron)
		},
	}

	cmd.Flags().StringVar(&logsCron, "logs-cron", "@hourly", "Cron expression for audit log upload")
	cmd.Flags().StringVar(&inventoryCron, "inventory-cron", "@every 6h", "Cron expression for inventory upload")

	return cmd
}

func runDaemon(client *authclient.Client, cfg *config.AgentConfig, logsCron, inventoryCron string) error {
	logger := newLogger()
	store := audit.NewStore(cfg.EffectiveDataDir(), logger)
	collector := sysinfo.NewCollector(identity.NewResolver())

	fmt.Printf("FSAuth Agent %s starting...\n", Version)
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Printf("Data dir: %s\n", cfg.EffectiveDataDir())

	initCtx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
	resp, err := client.Init(initCtx, Version)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("server init failed, continuing offline")
	} else if resp.UpdateRequired {
		fmt.Printf("Update required: server expects version %s\n", resp.Version)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	syncLogs := func() {
		ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
		defer cancel()
		if err := client.SendLogs(ctx); err != nil {
			logger.Warn().Err(err).Msg("audit log upload failed")
			return
		}
		logger.Info().Msg("audit logs uploaded")
	}

	syncInventory := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*transport.DefaultTimeout)
		defer cancel()

		snap := collector.Collect(ctx)
		if err := store.SavePCInfo(snap); err != nil {
			logger.Warn().Err(err).Msg("failed to store inventory snapshot")
		}
		if err := client.SendPCInfo(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("inventory upload failed")
			return
		}
		logger.Info().Str("hostname", snap.Hostname).Msg("inventory uploaded")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(logsCron, syncLogs); err != nil {
		return fmt.Errorf("invalid logs cron expression %q: %w", logsCron, err)
	}
	if _, err := scheduler.AddFunc(inventoryCron, syncInventory); err != nil {
		return fmt.Errorf("invalid inventory cron expression %q: %w", inventoryCron, err)
	}

	// One initial pass so a freshly started agent reports immediately.
	syncInventory()
	syncLogs()

	scheduler.Start()
	defer func() {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(10 * time.Second):
		}
	}()

	fmt.Println("Agent daemon running. Press Ctrl+C to stop.")

	sig := <-sigChan
	fmt.Printf("\nReceived %s, shutting down...\n", sig)

	client.LogEvent(audit.EventAppClosed, "SYSTEM", "", "Application closed", Version, 200)
	syncLogs()

	return nil
}

// buildClient assembles the session manager from the saved configuration.
func buildClient() (*authclient.Client, *config.AgentConfig, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("agent not configured: %w", err)
	}

	logger := newLogger()
	ident := identity.NewResolver()
	store := audit.NewStore(cfg.EffectiveDataDir(), logger)

	tr, err := transport.New(transport.Options{
		BaseURL:   cfg.ServerURL,
		UserAgent: fmt.Sprintf("FSAuth/%s (%s)", Version, runtime.GOOS),
		Proxy:     cfg.Proxy,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}

	client := authclient.New(authclient.Options{
		AppName:   cfg.AppName,
		AppSecret: cfg.AppSecret,
		Version:   Version,
		Transport: tr,
		Store:     store,
		Identity:  ident,
		Logger:    logger,
	})

	return client, cfg, nil
}

// openStore opens the audit store without requiring server configuration.
func openStore() (*audit.Store, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return audit.NewStore(cfg.EffectiveDataDir(), newLogger()), nil
}

func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// maskSecret returns a masked version of the app secret for display.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
