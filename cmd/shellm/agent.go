package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shellm/cmd/shellm/ui"
	"shellm/internal/agent"
	"shellm/internal/conversation"
	"shellm/internal/interject"
	"shellm/internal/ollama"
	"shellm/internal/shell"
)

var (
	agentPrompt    string
	agentMaxCycles int
	agentPolicy    string
)

// agentCmd runs the autonomous command loop.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the autonomous shell agent loop",
	Long: `The model's replies are executed as shell commands; each command's
exit code and output become the next turn. Lines you type on stdin are
queued and merged into the next feedback message without interrupting
the cycle. Ctrl-C terminates the loop.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentPrompt, "prompt", "", "initial prompt (default: built-in operator prompt)")
	agentCmd.Flags().IntVar(&agentMaxCycles, "max-cycles", 0, "stop after N command cycles (0 = until interrupted)")
	agentCmd.Flags().StringVar(&agentPolicy, "feedback-policy", "", `"both" or "prefer-stderr" (default from config)`)
}

// maxCyclesSetting prefers the flag whenever it was given on the
// command line, so an explicit --max-cycles 0 can override a config
// file limit. Zero is a valid value, not an unset marker.
func maxCyclesSetting(cmd *cobra.Command, flagValue, fromFile int) int {
	if cmd.Flags().Changed("max-cycles") {
		return flagValue
	}
	return fromFile
}

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := ui.NewConsole(os.Stdout)
	console.Banner(cfg.Ollama.Model, cfg.Ollama.Host)
	console.Info("type a line at any time to guide the agent; Ctrl-C stops it")

	backend := ollama.New(ollama.Config{
		Host:    cfg.Ollama.Host,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.RequestTimeout(),
	}, logger.Named("ollama"))

	conv := conversation.New(backend, conversation.Config{
		MaxTurns: cfg.Conversation.MaxTurns,
	}, logger.Named("conversation"))

	runner := shell.NewRunner(shell.Config{
		Shell:          cfg.Shell.Interpreter,
		MaxOutputBytes: cfg.Shell.MaxOutputBytes,
		WorkDir:        cfg.Shell.WorkDir,
	}, logger.Named("shell"))

	queue := interject.NewQueue()
	reader := interject.NewReader(queue, logger.Named("interject"))
	reader.Start(os.Stdin)

	prompt := agentPrompt
	if prompt == "" {
		prompt = cfg.Agent.InitialPrompt
	}
	policy := agent.FeedbackPolicy(agentPolicy)
	if policy == "" {
		policy = agent.FeedbackPolicy(cfg.Agent.FeedbackPolicy)
	}
	maxCycles := maxCyclesSetting(cmd, agentMaxCycles, cfg.Agent.MaxCycles)

	loop := agent.New(conv, runner, queue, console, agent.Config{
		InitialPrompt:  prompt,
		CommandTimeout: cfg.Agent.Timeout(),
		FeedbackPolicy: policy,
		MaxCycles:      maxCycles,
	}, logger.Named("agent"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		// The stdin reader is a daemon: it ends the run neither on EOF
		// nor by lingering after the loop stops.
		select {
		case <-reader.Done():
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		console.Info("interrupted")
		return nil
	}
	return err
}
