package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"childbehavior/internal/biometric"
	"childbehavior/internal/client"
	"childbehavior/internal/config"
	"childbehavior/internal/database"
	"childbehavior/internal/models"
	"childbehavior/internal/repository"
	"childbehavior/internal/security"
	"childbehavior/internal/service"
	"childbehavior/internal/shell"
)

func main() {
	// Define subcommands
	shellCmd := flag.NewFlagSet("shell", flag.ExitOnError)
	prefsCmd := flag.NewFlagSet("prefs", flag.ExitOnError)

	// Shell flags
	historyFile := shellCmd.String("history", defaultHistoryFile(), "Command history file (empty disables history)")

	// Prefs flags
	prefsYes := prefsCmd.Bool("yes", false, "Do not ask for confirmation before reset")

	subcommand := "shell"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcommand = args[0]
		args = args[1:]
	}
	if subcommand == "help" {
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the preferences store
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	prefs := repository.NewPreferencesRepository(db)

	switch subcommand {
	case "shell":
		shellCmd.Parse(args)
		runShell(cfg, prefs, *historyFile)

	case "prefs":
		prefsCmd.Parse(args)
		handlePrefs(prefs, prefsCmd.Args(), *prefsYes)

	default:
		printUsage()
		os.Exit(1)
	}
}

func runShell(cfg *config.Config, prefs *repository.PreferencesRepository, historyFile string) {
	api := client.New(cfg.APIBaseURL, cfg.HTTPTimeout)
	api.SetDebug(cfg.Debug)

	platform := biometric.NewCommandPlatform(cfg.BiometricCommand, cfg.BiometricCapabilityCommand)
	verifier := biometric.NewVerifier(platform, cfg.BiometricTimeout)

	session := service.NewSessionController(api, prefs, verifier, service.SystemClock{}, cfg.ParentAuthGrace)
	api.SetTokenSource(session.Token)

	limiter := security.NewRateLimiter(cfg.ReauthAttempts, cfg.ReauthWindow)
	defer limiter.Close()
	flow := service.NewReauthFlow(session, api, verifier, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restoreCtx, restoreCancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	if err := session.Restore(restoreCtx); err != nil {
		log.Printf("Warning: could not restore the previous session: %v", err)
	}
	restoreCancel()

	if cfg.Debug {
		log.Printf("[DEBUG] API %s, grace %s, biometric available: %v", api.BaseURL(), session.Grace(), verifier.Available(ctx))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatalf("Failed to initialize readline: %v", err)
	}
	defer rl.Close()

	// SIGINT is handled by readline; SIGTERM ends the shell
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
		rl.Close()
	}()

	sh := shell.New(session, flow, api, rl, rl.Stdout())
	if err := sh.Run(ctx, rl); err != nil {
		log.Fatalf("Shell failed: %v", err)
	}
}

func handlePrefs(prefs *repository.PreferencesRepository, args []string, yes bool) {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "show":
		p, err := prefs.Load()
		if err != nil {
			log.Fatalf("Failed to load preferences: %v", err)
		}
		printPreferences(p)

	case "reset":
		if !yes {
			fmt.Print("This signs you out and forgets all local settings. Type 'yes' to confirm: ")
			var confirmation string
			fmt.Scanln(&confirmation)
			if confirmation != "yes" {
				log.Println("Reset cancelled")
				return
			}
		}
		if err := prefs.Clear(); err != nil {
			log.Fatalf("Failed to reset preferences: %v", err)
		}
		log.Println("Preferences cleared")

	default:
		printUsage()
		os.Exit(1)
	}
}

func printPreferences(p models.Preferences) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	token := "(none)"
	if p.AuthToken != "" {
		token = "(stored)"
		if claims, err := client.TokenClaims(p.AuthToken); err == nil {
			token = fmt.Sprintf("user %d, %s", claims.UserID, claims.Role)
			if claims.ExpiresAt != nil {
				token += ", expires " + claims.ExpiresAt.Time.Local().Format(time.RFC3339)
			}
		}
	}
	fmt.Fprintf(w, "%s\t%s\n", repository.KeyAuthToken, token)

	mode := "(none)"
	if p.ViewMode != nil {
		mode = string(*p.ViewMode)
	}
	fmt.Fprintf(w, "%s\t%s\n", repository.KeyViewMode, mode)

	child := "(none)"
	if p.SelectedChildID != nil {
		child = fmt.Sprintf("%d", *p.SelectedChildID)
	}
	fmt.Fprintf(w, "%s\t%s\n", repository.KeySelectedChildID, child)

	fmt.Fprintf(w, "%s\t%v\n", repository.KeyBiometricEnabled, p.BiometricEnabled)

	setup := "(none)"
	if p.BiometricLastSetup != nil {
		setup = p.BiometricLastSetup.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "%s\t%s\n", repository.KeyBiometricLastSetup, setup)
}

func defaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "childbehavior", "history")
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  familyctl [shell] [-history FILE]    Start the interactive shell (default)")
	fmt.Println("  familyctl prefs show                 Show the stored session preferences")
	fmt.Println("  familyctl prefs [-yes] reset         Sign out and clear stored preferences")
	fmt.Println()
	fmt.Println("Configuration is read from .env, CONFIG_FILE and the environment.")
	fmt.Println("See API_BASE_URL, DB_TYPE, DB_PATH, PARENT_AUTH_GRACE, BIOMETRIC_COMMAND.")
}
