// Package agent implements the autonomous control loop: model turn,
// shell execution, feedback composition, next model turn, until
// interrupted. Execution failures are absorbed into feedback and never
// end the conversation; only an operator interrupt or a backend
// failure does.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shellm/internal/conversation"
	"shellm/internal/interject"
	"shellm/internal/shell"
)

// DefaultCommandTimeout bounds each command execution.
const DefaultCommandTimeout = 30 * time.Second

// DefaultInitialPrompt is the fixed prompt that opens the loop when the
// caller supplies none.
const DefaultInitialPrompt = `You are operating a shell. Reply with exactly one shell command and nothing else: no commentary, no code fences. After each command you will receive its exit code and output, plus any operator messages. Use them to decide your next command. Begin by surveying the current directory.`

// Runner executes one command string with a timeout. Satisfied by
// *shell.Runner; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) shell.Result
}

// FeedbackPolicy selects how a normal completion is folded into the
// next user turn.
type FeedbackPolicy string

const (
	// FeedbackBoth always reports both streams.
	FeedbackBoth FeedbackPolicy = "both"

	// FeedbackPreferStderr reports stderr alone when it is non-empty,
	// stdout otherwise.
	FeedbackPreferStderr FeedbackPolicy = "prefer-stderr"
)

// Observer receives the per-cycle side-effect surface: what was sent to
// the shell and what came back. Observability only; the loop never
// reads anything back from it.
type Observer interface {
	Command(cycle int, command string)
	Result(cycle int, res shell.Result)
	Notice(cycle int, text string)
	Interjections(cycle int, msgs []string)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Command(int, string)         {}
func (NopObserver) Result(int, shell.Result)    {}
func (NopObserver) Notice(int, string)          {}
func (NopObserver) Interjections(int, []string) {}

// Config holds loop settings.
type Config struct {
	// InitialPrompt opens the conversation; empty means
	// DefaultInitialPrompt.
	InitialPrompt string

	// CommandTimeout bounds each execution; <= 0 means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration

	// FeedbackPolicy defaults to FeedbackBoth.
	FeedbackPolicy FeedbackPolicy

	// MaxCycles stops the loop after that many executions; 0 means run
	// until interrupted.
	MaxCycles int
}

// Loop orchestrates the gateway, the executor, and the interjection
// queue. Single-threaded and strictly serialized: one exchange, one
// execution, one feedback per cycle.
type Loop struct {
	conv     *conversation.Conversation
	runner   Runner
	queue    *interject.Queue
	observer Observer
	logger   *zap.Logger
	cfg      Config
}

// New creates a loop. A nil observer or logger is replaced with a no-op
// implementation.
func New(conv *conversation.Conversation, runner Runner, queue *interject.Queue, observer Observer, cfg Config, logger *zap.Logger) *Loop {
	if cfg.InitialPrompt == "" {
		cfg.InitialPrompt = DefaultInitialPrompt
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.FeedbackPolicy == "" {
		cfg.FeedbackPolicy = FeedbackBoth
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		conv:     conv,
		runner:   runner,
		queue:    queue,
		observer: observer,
		logger:   logger.With(zap.String("run_id", uuid.NewString())),
		cfg:      cfg,
	}
}

// Run drives the loop until ctx is canceled, MaxCycles is reached, or
// the backend fails. Execution-layer failures (timeout, nonzero exit,
// host fault) never escape: each becomes feedback for the next turn.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("agent loop starting",
		zap.Duration("command_timeout", l.cfg.CommandTimeout),
		zap.String("feedback_policy", string(l.cfg.FeedbackPolicy)),
		zap.Int("max_cycles", l.cfg.MaxCycles))

	reply, err := l.conv.Send(ctx, l.cfg.InitialPrompt)
	if err != nil {
		return fmt.Errorf("initial exchange: %w", err)
	}

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			l.logger.Info("agent loop interrupted", zap.Int("cycle", cycle))
			return err
		}

		command := ExtractCommand(reply)
		l.observer.Command(cycle, command)
		l.logger.Info("executing model command",
			zap.Int("cycle", cycle),
			zap.String("command", command))

		res := l.runner.Run(ctx, command, l.cfg.CommandTimeout)

		// A cancellation that lands mid-execution surfaces as a host
		// fault in the result; the interrupt check decides, not the
		// result shape.
		if err := ctx.Err(); err != nil {
			l.logger.Info("agent loop interrupted during execution", zap.Int("cycle", cycle))
			return err
		}

		feedback := l.composeFeedback(cycle, res)

		if msgs := l.queue.DrainAll(); len(msgs) > 0 {
			l.observer.Interjections(cycle, msgs)
			l.logger.Info("operator interjections merged",
				zap.Int("cycle", cycle),
				zap.Int("count", len(msgs)))
			feedback += "\n\noperator says:\n" + strings.Join(msgs, "\n")
		}

		if l.cfg.MaxCycles > 0 && cycle >= l.cfg.MaxCycles {
			l.logger.Info("cycle budget reached", zap.Int("cycles", cycle))
			return nil
		}

		reply, err = l.conv.Send(ctx, feedback)
		if err != nil {
			return fmt.Errorf("cycle %d exchange: %w", cycle, err)
		}
	}
}

// composeFeedback folds one execution result into the next user turn.
func (l *Loop) composeFeedback(cycle int, res shell.Result) string {
	switch {
	case res.TimedOut:
		notice := fmt.Sprintf("the last command timed out after %s", l.cfg.CommandTimeout)
		l.observer.Notice(cycle, notice)
		return notice

	case res.Err != "":
		notice := fmt.Sprintf("the last command could not be executed: %s", res.Err)
		l.observer.Notice(cycle, notice)
		return notice
	}

	l.observer.Result(cycle, res)

	var b strings.Builder
	fmt.Fprintf(&b, "exit code: %d\n", *res.ExitCode)

	if l.cfg.FeedbackPolicy == FeedbackPreferStderr && res.Stderr != "" {
		b.WriteString("stderr:\n")
		b.WriteString(res.Stderr)
	} else {
		b.WriteString("stdout:\n")
		b.WriteString(res.Stdout)
		b.WriteString("\nstderr:\n")
		b.WriteString(res.Stderr)
	}

	if res.Truncated {
		b.WriteString("\n(output truncated)")
	}
	return b.String()
}

// ExtractCommand normalizes a model reply into a runnable command
// string: surrounding whitespace is dropped and a single fenced code
// block is unwrapped, discarding any language tag.
func ExtractCommand(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line, e.g. ```bash.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
