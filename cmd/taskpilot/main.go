package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rfoxall/taskpilot/agent"
	"github.com/rfoxall/taskpilot/agent/console"
	"github.com/rfoxall/taskpilot/config"
	"github.com/rfoxall/taskpilot/errors"
	"github.com/rfoxall/taskpilot/llm"
	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
	"github.com/rfoxall/taskpilot/tools/mcp"
)

func main() {
	modeFlag := flag.String("m", "", "Execution mode: 'auto' or 'prompt'")
	sessionFlag := flag.String("s", "", "Session name for the saved transcript")
	maxIterFlag := flag.Int("max-iterations", 0, "Maximum loop iterations")
	requestLimitFlag := flag.Int("request-limit", 0, "Maximum model requests per run")
	verbosityFlag := flag.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all'")
	flag.Usage = usage
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		usage()
		os.Exit(2)
	}

	// Provider credentials may live in a local .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}
	if *maxIterFlag > 0 {
		cfg.MaxIterations = *maxIterFlag
	}
	if *requestLimitFlag > 0 {
		cfg.RequestLimit = *requestLimitFlag
	}
	if *verbosityFlag != "" {
		cfg.ToolVerbosity = *verbosityFlag
	}

	var mode tools.Mode
	switch cfg.Mode {
	case "auto":
		mode = tools.ModeAuto
	case "prompt":
		mode = tools.ModePrompt
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", cfg.Mode)
		os.Exit(1)
	}

	verbosity, err := console.ParseVerbosity(cfg.ToolVerbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// An operator interrupt cancels the run; a pending command is killed and
	// reported as a failed result rather than crashing the loop.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := buildClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLMClient, err)
		os.Exit(1)
	}

	cons := console.New(os.Stdout, verbosity)
	prompter := console.NewStdinPrompter(os.Stdin, os.Stdout)

	gate := tools.NewGate(mode, prompter)
	gate.VerifyReadOnly = cfg.VerifyReadOnly
	if err := gate.SetReadOnlyPatterns(cfg.ReadOnlyCommands); err != nil {
		fmt.Fprintf(os.Stderr, "Error in read_only_commands: %+v\n", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewShellTool(gate, &tools.Executor{Console: cons.Writer()}))

	if cfg.LookupServer != nil {
		lookup, err := mcp.Connect(ctx, cfg.LookupServer.Name, cfg.LookupServer.Command, cfg.LookupServer.Args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting lookup server: %+v\n", err)
			os.Exit(1)
		}
		defer lookup.Close()
		for _, t := range lookup.Tools() {
			registry.MustRegister(t)
		}
	} else {
		registry.MustRegister(&tools.SearchTool{Hidden: cfg.HiddenPaths})
	}

	sessionName := *sessionFlag
	if sessionName == "" {
		sessionName = defaultSessionName()
	}
	transcript, err := session.New(sessionName, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	workflow, err := agent.New(client, registry, cons,
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithRequestLimit(cfg.RequestLimit),
		agent.WithTranscript(transcript),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing workflow: %+v\n", err)
		os.Exit(1)
	}

	res, err := workflow.Run(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run aborted: %+v\n", err)
		os.Exit(1)
	}

	report(cons, res)
	if res.Termination != agent.TerminationCompleted {
		os.Exit(1)
	}
}

// buildClient selects the provider named in the config. Credentials come
// from the environment; an unset provider falls back to the offline mock.
func buildClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLMClient {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.Model)
	case "openai":
		return llm.NewOpenAIClient(ctx, cfg.Model)
	case "anthropic":
		return llm.NewAnthropicClient(ctx, cfg.Model)
	case "bedrock":
		return llm.NewBedrockClient(ctx, cfg.Model)
	case "", "mock":
		return &llm.MockClient{}, nil
	default:
		return nil, errors.New("unknown llm provider '%s', must be 'gemini', 'openai', 'anthropic', 'bedrock' or 'mock'", cfg.LLMClient)
	}
}

func report(cons *console.Console, res *agent.Result) {
	cons.Printf("\n=== %s after %d iteration(s), %d request(s) ===\n",
		res.Termination, res.Iterations, res.Requests)

	switch {
	case res.Outcome == nil:
		// Budget exhaustion: surface partial progress, never discard it.
		for _, step := range res.StepsTaken {
			cons.Printf("  %s\n", step)
		}
	case res.Outcome.Complete != nil:
		cons.Printf("%s\n", res.Outcome.Complete.Result)
		if res.Outcome.Complete.Summary != "" {
			cons.Printf("Summary: %s\n", res.Outcome.Complete.Summary)
		}
	case res.Outcome.Failed != nil:
		cons.Printf("Error: %s\n", res.Outcome.Failed.Error)
		for _, step := range res.Outcome.Failed.AttemptedSteps {
			cons.Printf("  attempted: %s\n", step)
		}
	}
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "taskpilot"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), time.Now().Format("2006-01-02_15-04-05"))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: taskpilot [flags] <query...>\n\nRuns the query against the configured model, executing shell commands\nwith confirmation for anything state-mutating.\n\nFlags:\n")
	flag.PrintDefaults()
}
