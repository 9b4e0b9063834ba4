// Package console is an interactive terminal front-end for a session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
	"rag-chat-client/internal/session"
)

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
}

const helpText = `Commands:
  /upload <path>   index a document
  /history         show the conversation
  /health          check the backend
  /help            show this help
  /quit            exit
Anything else is sent as a question.`

// Console reads commands and questions line by line and renders the
// session's replies.
type Console struct {
	session *session.Session
	health  HealthChecker
	in      io.Reader
	out     io.Writer
	logger  *zap.Logger
}

func New(sess *session.Session, health HealthChecker, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		session: sess,
		health:  health,
		in:      in,
		out:     out,
		logger:  logging.OrNop(logger).Named("console"),
	}
}

// Run processes input until EOF, /quit or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	for _, m := range c.session.Queries.Messages() {
		RenderMessage(c.out, m)
	}
	fmt.Fprintln(c.out, `Type /help for commands.`)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := c.Handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// Handle executes one input line and reports whether the user asked to quit.
func (c *Console) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/history":
		for _, m := range c.session.Queries.Messages() {
			RenderMessage(c.out, m)
		}
	case "/health":
		c.checkHealth(ctx)
	case "/upload":
		c.upload(ctx, strings.TrimSpace(arg))
	default:
		c.ask(ctx, line)
	}
	return false
}

func (c *Console) ask(ctx context.Context, question string) {
	matchStyle.Fprintln(c.out, "Thinking...")
	if err := c.session.Queries.Send(ctx, question); err != nil {
		errorStyle.Fprintln(c.out, apperrors.Reason(err))
		return
	}
	if m, ok := c.session.Queries.Last(); ok {
		RenderMessage(c.out, m)
	}
}

func (c *Console) upload(ctx context.Context, path string) {
	if path == "" {
		errorStyle.Fprintln(c.out, "usage: /upload <path>")
		return
	}

	file, closer, err := session.OpenFile(path)
	if err != nil {
		c.logger.Debug("open failed", zap.String("path", path), zap.Error(err))
		RenderUpload(c.out, models.UploadFailed(path, err.Error()))
		return
	}
	defer func() { _ = closer.Close() }()

	matchStyle.Fprintf(c.out, "Uploading %s...\n", file.Name)
	result, err := c.session.Uploads.Submit(ctx, file)
	if err != nil {
		errorStyle.Fprintln(c.out, apperrors.Reason(err))
		return
	}
	RenderUpload(c.out, result)
}

func (c *Console) checkHealth(ctx context.Context) {
	resp, err := c.health.Health(ctx)
	if err != nil {
		errorStyle.Fprintf(c.out, "backend unavailable: %v\n", err)
		return
	}
	successStyle.Fprintf(c.out, "backend status: %s\n", resp.Status)
}
