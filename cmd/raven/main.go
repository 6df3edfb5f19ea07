package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"raven/internal/agent"
	"raven/internal/client"
	"raven/internal/config"
	"raven/internal/logging"
	"raven/internal/skills"
	"raven/internal/tools"
	"raven/internal/ui"
)

const systemPrompt = `You are raven, a security-focused terminal agent. You help with authorized security assessments, CTF challenges and infrastructure analysis by orchestrating shell, file and search tools.

Work methodically: enumerate before exploiting, verify versions before citing CVEs, and keep every action within the stated scope. Load a skill when one matches the task. Delegate self-contained sub-tasks to sub-agents when the detail would clutter the main investigation. When you are done, answer with a clear summary of findings and evidence.`

var (
	flagModel         string
	flagProvider      string
	flagMaxRounds     int
	flagShowReasoning bool
	flagTimeout       time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "raven [prompt]",
		Short: "raven is a security-agent runtime driving tools through a model",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), strings.Join(args, " "))
		},
	}
	root.PersistentFlags().StringVar(&flagModel, "model", "", "model name override")
	root.PersistentFlags().StringVar(&flagProvider, "provider", "", "provider override (gemini or ollama)")
	root.PersistentFlags().IntVar(&flagMaxRounds, "max-rounds", 0, "tool round budget override")
	root.PersistentFlags().BoolVar(&flagShowReasoning, "show-reasoning", false, "print model reasoning deltas")

	delegate := &cobra.Command{
		Use:   "delegate <objective>...",
		Short: "Run objectives as concurrent durable sub-agents and print their reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelegates(cmd.Context(), args)
		},
	}
	delegate.Flags().DurationVar(&flagTimeout, "timeout", 0, "overall wait timeout (0 waits indefinitely)")
	root.AddCommand(delegate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads config and builds the agent stack shared by all commands.
func setup(ctx context.Context) (*agent.Agent, *agent.Runner, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if flagProvider != "" {
		cfg.API.ActiveProvider = flagProvider
	}
	if flagMaxRounds > 0 {
		cfg.Agent.MaxToolRounds = flagMaxRounds
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, nil, err
	}

	if cfg.Logging.Enabled || cfg.Logging.ToFile {
		if dir, err := config.Dir(); err == nil {
			if err := logging.EnableFileLogging(dir, logging.Level(cfg.Logging.Level)); err != nil {
				fmt.Fprintln(os.Stderr, "warning: file logging disabled:", err)
			}
		}
	}

	if err := skills.WriteDefaults(cfg.Skills.Dir); err != nil {
		logging.Warn("failed to install default skills", "error", err)
	}
	store, err := skills.NewStore(cfg.Skills.Dir)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if cfg.Skills.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil && ctx.Err() == nil {
				logging.Warn("skill watcher stopped", "error", err)
			}
		}()
	}

	mc, err := client.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	registry := tools.NewRegistry()
	locks := tools.NewFileLockMap(0)
	registry.Register(tools.NewBashTool(cfg.Tools.WorkDir))
	registry.Register(tools.NewReadTool())
	registry.Register(tools.NewWriteTool())
	registry.Register(tools.NewEditTool(locks))
	registry.Register(tools.NewGlobTool(cfg.Tools.WorkDir))
	registry.Register(tools.NewGrepTool(cfg.Tools.WorkDir))
	registry.Register(tools.NewSkillTool(store))
	if cfg.API.SerpAPIKey != "" {
		registry.Register(tools.NewWebSearchTool(cfg.API.SerpAPIKey))
	}
	if bash, ok := registry.Get("bash"); ok {
		if bt, ok := bash.(*tools.BashTool); ok {
			bt.SetTimeout(cfg.Tools.BashTimeout)
			bt.SetMaxOutputBytes(cfg.Tools.MaxOutputBytes)
		}
	}

	tracker := agent.NewTracker()
	bus := agent.NewBus()
	runner := agent.NewRunner(mc, registry, tracker, bus, cfg)
	registry.Register(tools.NewSubAgentTool(runner))

	a := agent.New(mc, registry, tracker, bus, cfg)
	a.SetSystemPrompt(systemPrompt)

	cleanup := func() {
		mc.Close()
		logging.Close()
	}
	return a, runner, cfg, cleanup, nil
}

func runMain(ctx context.Context, prompt string) error {
	a, _, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	events, unsubscribe := a.Events().Subscribe()
	defer unsubscribe()
	printer := ui.NewPrinter(os.Stdout, flagShowReasoning)
	printDone := make(chan struct{})
	go func() {
		printer.Consume(events)
		close(printDone)
	}()

	if prompt != "" {
		res := a.Run(ctx, prompt)
		unsubscribe()
		<-printDone
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	}

	// Interactive: one run per line until EOF or interrupt.
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nraven> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		res := a.Run(ctx, line)
		if res.Error != "" {
			fmt.Fprintln(os.Stderr, "run failed:", res.Error)
		}
		if ctx.Err() != nil {
			break
		}
	}
	unsubscribe()
	<-printDone
	return scanner.Err()
}

// runDelegates fans objectives out to durable sub-agents behind a local
// callback endpoint and prints the joined reports in objective order.
func runDelegates(ctx context.Context, objectives []string) error {
	_, runner, cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	hooks := agent.NewHookRegistry()
	listener, err := net.Listen("tcp", cfg.Hooks.BindAddr)
	if err != nil {
		return fmt.Errorf("failed to bind callback endpoint: %w", err)
	}
	server := &http.Server{Handler: hooks.Handler()}
	go server.Serve(listener)
	defer server.Close()

	callbackURL := fmt.Sprintf("http://%s/hooks/callback", listener.Addr())
	timeout := flagTimeout
	if timeout == 0 {
		timeout = cfg.Hooks.Timeout
	}

	results, err := runner.RunDelegates(ctx, objectives, hooks, callbackURL, timeout)
	if err != nil {
		return err
	}

	for i, res := range results {
		fmt.Printf("=== [%d] %s ===\n", i+1, res.Objective)
		if !res.Completed {
			fmt.Printf("failed: %s\n\n", res.Error)
			continue
		}
		fmt.Printf("%s\n(%d tool calls)\n\n", res.Result, res.ToolCalls)
	}
	return nil
}
