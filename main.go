// RAG chat client talks to a retrieval-augmented question-answering backend:
// it uploads documents and asks questions about them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rag-chat-client/internal/api"
	"rag-chat-client/internal/backend"
	"rag-chat-client/internal/config"
	"rag-chat-client/internal/console"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/session"
	"rag-chat-client/internal/validation"
	"rag-chat-client/internal/watcher"
)

const usage = `Usage: rag-chat-client [flags] [command]

Commands:
  chat          interactive terminal chat (default)
  serve         local HTTP API for browser front-ends
  watch [dir]   upload .txt files dropped into dir

Flags:
`

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml, config.json and .env")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadFrom(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Args()); err != nil {
		logger.Error("exiting", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	client := backend.NewClient(cfg.Backend, logger)
	sess := session.New(client, session.Options{
		Logger: logger,
		Upload: session.UploadOptions{
			Gate: validation.NewGate(cfg.Upload.Extensions, cfg.Upload.MaxBytes),
		},
		Query: session.QueryOptions{
			WelcomeMessage: cfg.Session.WelcomeMessage,
		},
	})

	logger.Info("session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("backend", client.BaseURL()),
		zap.String("environment", cfg.App.Environment),
	)

	command := "chat"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "chat":
		return console.New(sess, client, os.Stdin, os.Stdout, logger).Run(ctx)

	case "serve":
		server := api.NewServer(sess, client, api.Options{
			Logger:       logger,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		})
		return server.Run(ctx, cfg.ServerAddr())

	case "watch":
		dir := cfg.Watch.Dir
		if len(args) > 1 {
			dir = args[1]
		}
		if dir == "" {
			return fmt.Errorf("watch needs a directory argument or watch.dir")
		}
		return watch(ctx, sess, dir, logger)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func watch(ctx context.Context, sess *session.Session, dir string, logger *zap.Logger) error {
	w, err := watcher.New(sess.Uploads, 0, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	existing, err := w.SubmitExisting(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, r := range existing {
		printResult(r)
	}

	results, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("watching directory", zap.String("dir", dir))

	for r := range results {
		printResult(r)
	}
	return nil
}

func printResult(r models.UploadResult) {
	console.RenderUpload(os.Stdout, r)
}
