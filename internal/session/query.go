package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/logging"
	"rag-chat-client/internal/models"
)

// ErrorPrefix marks assistant messages synthesized from a failed query.
const ErrorPrefix = "Error: "

// DefaultWelcomeMessage seeds every new conversation.
const DefaultWelcomeMessage = "Hello! Upload a document first, then ask me questions about it. Try: 'What pottery was found?'"

// Querier asks the backend a question.
type Querier interface {
	Query(ctx context.Context, question string) (*models.QueryResponse, error)
}

// QueryState is a state of the query controller.
type QueryState int

const (
	QueryIdle QueryState = iota
	QuerySending
	QueryAppended
	QueryFailed
)

func (s QueryState) String() string {
	switch s {
	case QueryIdle:
		return "idle"
	case QuerySending:
		return "sending"
	case QueryAppended:
		return "appended"
	case QueryFailed:
		return "failed"
	default:
		return fmt.Sprintf("QueryState(%d)", int(s))
	}
}

type queryEvent string

const (
	querySend   queryEvent = "send"
	queryAnswer queryEvent = "answer"
	queryFail   queryEvent = "fail"
	querySettle queryEvent = "settle"
)

type queryEdge struct {
	from  QueryState
	event queryEvent
}

var queryTransitions = map[queryEdge]QueryState{
	{QueryIdle, querySend}:       QuerySending,
	{QuerySending, queryAnswer}:  QueryAppended,
	{QuerySending, queryFail}:    QueryFailed,
	{QueryAppended, querySettle}: QueryIdle,
	{QueryFailed, querySettle}:   QueryIdle,
}

// QueryOptions configures a QueryController. Hooks are called from the
// goroutine running Send, never while the controller lock is held.
type QueryOptions struct {
	WelcomeMessage string
	Logger         *zap.Logger

	OnTransition func(from, to QueryState)
	OnMessage    func(models.Message)
}

// QueryController sends one question at a time and owns the conversation.
type QueryController struct {
	querier Querier
	logger  *zap.Logger

	onTransition func(from, to QueryState)
	onMessage    func(models.Message)

	mu           sync.Mutex
	state        QueryState
	conversation *models.Conversation
}

// NewQueryController creates a controller whose conversation holds a single
// assistant welcome message.
func NewQueryController(querier Querier, opts QueryOptions) *QueryController {
	welcome := opts.WelcomeMessage
	if welcome == "" {
		welcome = DefaultWelcomeMessage
	}
	return &QueryController{
		querier:      querier,
		logger:       logging.OrNop(opts.Logger).Named("query"),
		onTransition: opts.OnTransition,
		onMessage:    opts.OnMessage,
		conversation: models.NewConversation(models.NewAssistantNotice(welcome)),
	}
}

// State returns the current state.
func (c *QueryController) State() QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a question is in flight.
func (c *QueryController) Busy() bool {
	return c.State() != QueryIdle
}

// Messages returns a copy of the conversation.
func (c *QueryController) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Messages()
}

// Len returns the number of messages in the conversation.
func (c *QueryController) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Len()
}

// Last returns the most recent message.
func (c *QueryController) Last() (models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Last()
}

// Send appends question as a user message, asks the backend and appends the
// assistant reply. Failures become assistant messages prefixed with
// ErrorPrefix. Send returns ErrEmptyQuestion for blank input and ErrBusy
// while another question is in flight; in both cases nothing changes.
func (c *QueryController) Send(ctx context.Context, question string) error {
	_, err := c.Ask(ctx, question)
	return err
}

// Ask is Send returning the assistant message it appended. The reply is the
// one produced for this question even if another question has been sent
// since.
func (c *QueryController) Ask(ctx context.Context, question string) (reply models.Message, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Message{}, apperrors.ErrEmptyQuestion
	}

	if terr := c.transition(querySend, models.NewUserMessage(question)); terr != nil {
		c.logger.Debug("question refused", zap.Error(terr))
		return models.Message{}, apperrors.ErrBusy
	}
	defer func() { reply = c.settle(reply, recover()) }()

	resp, qerr := c.querier.Query(ctx, question)
	if qerr == nil && (resp == nil || resp.Answer == nil) {
		qerr = apperrors.ErrMissingAnswer
	}
	if qerr != nil {
		c.logger.Warn("query failed", zap.Error(qerr), zap.String("kind", string(apperrors.KindOf(qerr))))
		reply = models.NewAssistantNotice(ErrorPrefix + qerr.Error())
		_ = c.transition(queryFail, reply)
		return reply, nil
	}

	c.logger.Info("answer received", zap.Int("sources", len(resp.Sources)))
	reply = models.NewAssistantMessage(*resp.Answer, resp.Sources)
	_ = c.transition(queryAnswer, reply)
	return reply, nil
}

// settle returns to Idle. A panicking backend is recovered here; if the
// request never produced a reply the transcript still gets an assistant
// message so every accepted question is answered.
func (c *QueryController) settle(reply models.Message, recovered any) models.Message {
	if recovered != nil {
		c.logger.Error("query panicked", zap.Any("panic", recovered))
	}
	if c.State() == QuerySending {
		reply = models.NewAssistantNotice(ErrorPrefix + "request aborted")
		_ = c.transition(queryFail, reply)
	}
	_ = c.transition(querySettle)
	return reply
}

// transition applies ev and, when msgs are given, appends them to the
// conversation under the same lock. It is the only writer of state and
// conversation.
func (c *QueryController) transition(ev queryEvent, msgs ...models.Message) error {
	c.mu.Lock()
	from := c.state
	to, ok := queryTransitions[queryEdge{from, ev}]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("query: no transition from %s on %s", from, ev)
	}
	c.state = to
	for _, m := range msgs {
		c.conversation.Append(m)
	}
	c.mu.Unlock()

	c.logger.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
	if c.onMessage != nil {
		for _, m := range msgs {
			c.onMessage(m)
		}
	}
	return nil
}
