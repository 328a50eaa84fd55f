package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shellm/cmd/shellm/ui"
	"shellm/internal/conversation"
	"shellm/internal/ollama"
)

// chatCmd is the interactive streaming REPL.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive streaming conversation with the model",
	Long: `Starts a line-oriented chat. Replies stream to the console as they
are generated. Commands:

  /clear    reset the conversation history
  /history  show the current history window
  /quit     exit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := ui.NewConsole(os.Stdout)
	console.Banner(cfg.Ollama.Model, cfg.Ollama.Host)

	backend := ollama.New(ollama.Config{
		Host:    cfg.Ollama.Host,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.RequestTimeout(),
	}, logger.Named("ollama"))

	conv := conversation.New(backend, conversation.Config{
		MaxTurns: cfg.Conversation.MaxTurns,
	}, logger.Named("conversation"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		console.Prompt()
		if !scanner.Scan() {
			console.EndReply()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/clear":
			conv.History().Clear()
			console.Info("history cleared")
			continue
		case line == "/history":
			for _, t := range conv.History().Snapshot() {
				console.Info(fmt.Sprintf("%s: %s", t.Role, t.Content))
			}
			continue
		}

		_, err := conv.SendStream(ctx, line, console.Fragment)
		console.EndReply()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The exchange failed but the session survives; the user
			// turn stays in history per the gateway contract.
			console.Error(err)
			logger.Warn("chat exchange failed", zap.Error(err))
		}
	}
}
