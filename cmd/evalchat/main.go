// evalchat is an interactive chat REPL whose model replies can carry
// executable code blocks; the last block of each reply is run and its
// output is fed back into the conversation.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evalchat/internal/config"
	"evalchat/internal/display"
	"evalchat/internal/executor"
	"evalchat/internal/history"
	"evalchat/internal/inputlog"
	"evalchat/internal/logging"
	"evalchat/internal/orchestrator"
	"evalchat/internal/transport"
)

var version = "0.3.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "evalchat",
	Short: "Chat with a model that can run the code it writes",
	Long: `evalchat drives a conversation loop between you, a streaming language
model, and a sandboxed code executor. When the model's reply ends in a
fenced code block with a registered tag (go by default), the block is
executed and its result becomes the next conversation turn, until the
model replies without an actionable block.

Meta-commands at the prompt:
  :continue       resume the loop without new input
  :rewind N       truncate history back to turn N
  :edit N TEXT    rewind to turn N and re-ask with TEXT as the reply prefix
  :history        show recorded turns
  :quit           exit`,
	RunE: runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the evalchat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("evalchat", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "evalchat.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	// Configuration errors fail fast, before any turn exists.
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := history.NewStore(cfg.LLM.SystemInstruction)
	client := transport.NewClient(transport.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	}, logger.Named("transport"))

	registry := executor.NewRegistry()
	registry.Register("go", executor.NewGoExecutor(cfg.GetExecutionTimeout()))

	opts := orchestrator.Options{
		Store:     store,
		Model:     client,
		Executors: registry,
		Sink:      display.NewConsole(os.Stdout),
		Logger:    logger.Named("orchestrator"),
	}
	if cfg.History.InputLogPath != "" {
		log, err := inputlog.Open(cfg.History.InputLogPath)
		if err != nil {
			return err
		}
		defer log.Close()
		opts.InputLog = log
	}
	orch := orchestrator.New(opts)

	// Ctrl-C aborts the in-flight model turn instead of killing the REPL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	watcherDone := watchSignals(sigCh, orch.Abort, logger)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
		<-watcherDone
	}()

	return repl(cmd.Context(), orch, logger)
}

// watchSignals forwards each received signal to abort until sigCh is closed.
// The returned channel closes when the watcher exits.
func watchSignals(sigCh <-chan os.Signal, abort func() error, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sigCh {
			if err := abort(); err != nil {
				logger.Debug("abort ignored", zap.Error(err))
			}
		}
	}()
	return done
}

func repl(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		var err error
		switch {
		case line == ":quit" || line == ":q":
			return nil

		case line == ":history":
			printHistory(orch)
			continue

		case line == "" || line == ":continue":
			err = orch.Continue(ctx)
			if errors.Is(err, orchestrator.ErrNoContinuation) {
				fmt.Println("(nothing to continue)")
				continue
			}

		case strings.HasPrefix(line, ":rewind"):
			var index int
			index, err = parseIndex(line, ":rewind")
			if err == nil {
				err = orch.RewindTo(index)
			}

		case strings.HasPrefix(line, ":edit"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, ":edit"))
			indexStr, text, found := strings.Cut(rest, " ")
			if !found {
				fmt.Println("usage: :edit N TEXT")
				continue
			}
			var index int
			index, err = strconv.Atoi(indexStr)
			if err == nil {
				err = orch.EditAndContinue(ctx, index, text)
			}

		default:
			err = orch.Submit(ctx, line)
		}

		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrAborted):
			fmt.Println("(aborted)")
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
			if ackErr := orch.Acknowledge(); ackErr == nil {
				logger.Debug("diagnostic acknowledged")
			}
		}
	}
}

func parseIndex(line, prefix string) (int, error) {
	arg := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if arg == "" {
		return 0, fmt.Errorf("usage: %s N", prefix)
	}
	return strconv.Atoi(arg)
}

func printHistory(orch *orchestrator.Orchestrator) {
	for _, t := range orch.History() {
		first := t.Content
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
		if len(first) > 72 {
			first = first[:72] + "…"
		}
		fmt.Printf("%3d  id=%-4d %-8s %s\n", t.SequenceIndex, t.Identity, t.Actor, first)
	}
}
