// todochat - terminal client for the to-do assistant service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ashureev/todochat/internal/agent"
	"github.com/ashureev/todochat/internal/chat"
	"github.com/ashureev/todochat/internal/config"
	"github.com/ashureev/todochat/internal/identity"
	"github.com/ashureev/todochat/internal/session"
	"github.com/ashureev/todochat/internal/store"
	"github.com/ashureev/todochat/internal/tui"
)

type options struct {
	apiURL    string
	statePath string
	plain     bool
	fresh     bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("todochat", pflag.ContinueOnError)
	flagSet.StringVar(&opts.apiURL, "api-url", "", "assistant service base URL (overrides API_URL)")
	flagSet.StringVar(&opts.statePath, "state", "", "path to the local state database (overrides STATE_PATH)")
	flagSet.BoolVar(&opts.plain, "plain", false, "use the line-oriented interface even on a terminal")
	flagSet.BoolVar(&opts.fresh, "new", false, "start a new conversation instead of resuming the last one")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	envErr := godotenv.Load()

	cfg := config.FromEnv()
	if opts.apiURL != "" {
		cfg.APIURL = strings.TrimRight(opts.apiURL, "/")
	}
	if opts.statePath != "" {
		cfg.StatePath = opts.statePath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	interactive := !opts.plain &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog := newLogger(cfg, interactive)
	defer closeLog()
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	logger.Info("Starting todochat",
		"api_url", cfg.APIURL,
		"local", cfg.IsLocal(),
		"interactive", interactive,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage := openStorage(ctx, cfg.StatePath, logger)
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			logger.Error("Failed to close state database", "error", closeErr)
		}
	}()

	transcript, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		logger.Warn("Conversation transcript disabled", "error", err)
		transcript = agent.NopConversationLogger()
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil {
			logger.Error("Failed to close conversation transcript", "error", closeErr)
		}
	}()

	client := agent.NewClient(agent.ClientConfig{
		BaseURL:        cfg.APIURL,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	ids := identity.NewProvider(storage, logger)
	ctrl := chat.New(ctx, chat.Deps{
		Identity:   ids,
		Sessions:   session.NewStore(storage, logger),
		Transport:  client,
		Transcript: transcript,
		Logger:     logger,
	})
	if ids.Degraded() {
		logger.Warn("Client identity is not persisted; conversations will not survive a restart")
	}

	if opts.fresh {
		if err := ctrl.StartNewConversation(ctx); err != nil {
			logger.Warn("Could not clear previous conversation", "error", err)
		}
	}

	if interactive {
		return tui.Run(ctx, ctrl)
	}
	return tui.RunPlain(ctx, ctrl, os.Stdin, os.Stdout)
}

// openStorage opens the SQLite state file. When it cannot be opened the
// client runs on an in-memory store: identity and conversation then last
// only for this process.
func openStorage(ctx context.Context, path string, logger *slog.Logger) store.Repository {
	repo, err := store.NewSQLite(path)
	if err != nil {
		logger.Warn("Local state unavailable, falling back to memory", "path", path, "error", err)
		return store.NewMemory()
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Warn("Local state health check failed, falling back to memory", "path", path, "error", err)
		_ = repo.Close()
		return store.NewMemory()
	}
	logger.Debug("Local state opened", "path", path)
	return repo
}

// newLogger writes to a file while the full-screen UI owns the terminal and
// to stderr otherwise: text on a terminal, JSON when redirected.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, func()) {
	options := &slog.HandlerOptions{Level: cfg.LogLevel}

	if !interactive {
		var handler slog.Handler
		if term.IsTerminal(int(os.Stderr.Fd())) {
			handler = slog.NewTextHandler(os.Stderr, options)
		} else {
			handler = slog.NewJSONHandler(os.Stderr, options)
		}
		return slog.New(handler), func() {}
	}

	discard := slog.New(slog.NewJSONHandler(io.Discard, options))
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return discard, func() {}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return discard, func() {}
	}
	return slog.New(slog.NewJSONHandler(f, options)), func() { _ = f.Close() }
}
