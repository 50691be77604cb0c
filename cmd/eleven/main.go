package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/nexteleven/eleven/agent"
	"github.com/nexteleven/eleven/agent/terminal"
	"github.com/nexteleven/eleven/config"
	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/keychain"
	"github.com/nexteleven/eleven/llm"
	"github.com/nexteleven/eleven/policy"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

func main() {
	agentFlag := flag.String("agent", "", "Agent profile to use (see -list-agents)")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	forceFlag := flag.Bool("force", false, "Auto-approve tool calls that would normally ask")
	skipPermissionsFlag := flag.Bool("dangerously-skip-permissions", false, "Disable the permission gate entirely")
	verbosityFlag := flag.String("tool-verbosity", "none", "Tool verbosity level: 'none', 'info', or 'all'")
	noLogFlag := flag.Bool("no-log", false, "Disable the interaction log")
	listAgentsFlag := flag.Bool("list-agents", false, "List available agent profiles and exit")
	setKeyFlag := flag.Bool("set-key", false, "Store the API key in the system credential store and exit")
	deleteKeyFlag := flag.Bool("delete-key", false, "Remove the stored API key and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("Error loading configuration: %+v", err)
	}
	if *noLogFlag {
		cfg.AutoLog = false
	}

	if *listAgentsFlag {
		for _, p := range cfg.ListProfiles() {
			fmt.Printf("%-12s %s (%s)\n", p.ID, p.Name, p.Mode)
		}
		return
	}
	if *setKeyFlag {
		if err := storeKey(); err != nil {
			fatalf("Error storing API key: %+v", err)
		}
		fmt.Println("API key stored.")
		return
	}
	if *deleteKeyFlag {
		if err := keychain.DeleteAPIKey(); err != nil {
			fatalf("Error deleting API key: %+v", err)
		}
		fmt.Println("API key removed.")
		return
	}

	profile, err := cfg.ResolveProfile(*agentFlag)
	if err != nil {
		fatalf("%+v", err)
	}

	mode := policy.ParseMode(*forceFlag, *skipPermissionsFlag)
	if mode == policy.ModeUnrestricted {
		fmt.Fprintln(os.Stderr, "Warning: permission gate disabled, every tool call will run unprompted")
	}

	var sess *session.Session
	sessionName := *sessionFlag
	if *resumeFlag != "" {
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fatalf("Error resuming session '%s': %+v", sessionName, err)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
	} else {
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fatalf("Error creating session '%s': %+v", sessionName, err)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	apiKey, err := keychain.APIKey()
	if err != nil {
		if cfg.Provider == "grok" {
			fatalf("No API key found: store one with 'eleven -set-key' or set %s", keychain.EnvOverride)
		}
		apiKey = "" // non-default providers read their own environment
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(ctx, cfg, apiKey)
	if err != nil {
		fatalf("Error initializing %s client: %+v", cfg.Provider, err)
	}

	registry := tools.NewRegistry(cfg, func(warning string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	})
	defer registry.Close()

	var verbosity agent.ToolVerbosity
	switch *verbosityFlag {
	case "none":
		verbosity = agent.ToolVerbosityNone
	case "info":
		verbosity = agent.ToolVerbosityInfo
	case "all":
		verbosity = agent.ToolVerbosityAll
	default:
		fatalf("Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.", *verbosityFlag)
	}

	a := agent.New(cfg, profile, sess, client, registry, mode)
	a.Verbosity = verbosity

	term := terminal.New(a)
	initialPrompt := strings.Join(flag.Args(), " ")

	// A prompt on the command line runs one-shot; otherwise stay
	// interactive.
	if initialPrompt != "" {
		if err := term.RunOnce(ctx, initialPrompt); err != nil {
			if errors.KindOf(err) == errors.KindCanceled {
				return
			}
			fatalf("%+v", err)
		}
		return
	}

	fmt.Printf("Eleven is ready (%s profile). Type your prompt.\n", profile.ID)
	if err := term.Run(ctx, ""); err != nil {
		if errors.KindOf(err) == errors.KindCanceled {
			return
		}
		fatalf("Agent stopped with an error: %+v", err)
	}
}

func storeKey() error {
	fmt.Print("Enter API key: ")
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return errors.Wrapf(err, "reading key")
	}
	return keychain.SetAPIKey(strings.TrimSpace(key))
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "eleven"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), uuid.NewString()[:8])
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
