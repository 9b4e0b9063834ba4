package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rag-chat-client/internal/backend"
	"rag-chat-client/internal/config"
	apperrors "rag-chat-client/internal/errors"
	"rag-chat-client/internal/models"
)

func TestNewQueryControllerSeedsWelcome(t *testing.T) {
	c := NewQueryController(NewMockBackend(), QueryOptions{})

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, DefaultWelcomeMessage, msgs[0].Content)
	assert.Nil(t, msgs[0].Sources)
	assert.False(t, c.Busy())
	assert.Equal(t, QueryIdle, c.State())
}

func TestSendAppendsUserAndAssistant(t *testing.T) {
	mock := NewMockBackend()
	sources := []models.Source{
		{Text: "Sherds of red-slipped ware", Similarity: 0.91, Filename: "b.txt"},
		{Text: "Grey ware", Similarity: 0.95, Filename: "a.txt"},
	}
	mock.SetAnswer("Red-slipped ware was found.", sources)

	var transitions []string
	c := NewQueryController(mock, QueryOptions{
		WelcomeMessage: "welcome",
		Logger:         zaptest.NewLogger(t),
		OnTransition: func(from, to QueryState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	require.NoError(t, c.Send(context.Background(), "  What pottery was found?  "))

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "What pottery was found?", msgs[1].Content)
	assert.Nil(t, msgs[1].Sources)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Red-slipped ware was found.", msgs[2].Content)
	// Backend order is preserved, not re-sorted by similarity.
	assert.Equal(t, sources, msgs[2].Sources)

	assert.Equal(t, []string{"idle>sending", "sending>appended", "appended>idle"}, transitions)
	assert.Equal(t, []string{"What pottery was found?"}, mock.questions)
	assert.False(t, c.Busy())
}

func TestSendEmptyIsNoop(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		mock := NewMockBackend()
		c := NewQueryController(mock, QueryOptions{})

		err := c.Send(context.Background(), q)

		assert.ErrorIs(t, err, apperrors.ErrEmptyQuestion)
		assert.Equal(t, 1, c.Len())
		assert.Zero(t, mock.queries.Load())
		assert.Equal(t, QueryIdle, c.State())
	}
}

func TestSendFailureAppendsErrorMessage(t *testing.T) {
	mock := NewMockBackend()
	mock.SetQueryError(apperrors.ErrBadStatus.WithMessage("backend returned status 500").WithStatus(500))

	var states []QueryState
	c := NewQueryController(mock, QueryOptions{
		OnTransition: func(_, to QueryState) { states = append(states, to) },
	})

	require.NoError(t, c.Send(context.Background(), "Q"))

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, ErrorPrefix)
	assert.Contains(t, last.Content, "500")
	assert.Nil(t, last.Sources)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []QueryState{QuerySending, QueryFailed, QueryIdle}, states)
	assert.False(t, c.Busy())
}

func TestSendNilAnswerIsFailure(t *testing.T) {
	c := NewQueryController(nilAnswerQuerier{}, QueryOptions{})

	require.NoError(t, c.Send(context.Background(), "Q"))

	last, _ := c.Last()
	assert.Contains(t, last.Content, ErrorPrefix)
	assert.False(t, c.Busy())
}

type nilAnswerQuerier struct{}

func (nilAnswerQuerier) Query(context.Context, string) (*models.QueryResponse, error) {
	return &models.QueryResponse{}, nil
}

func TestSendPanicStillSettles(t *testing.T) {
	c := NewQueryController(panicQuerier{}, QueryOptions{})

	var reply models.Message
	var err error
	assert.NotPanics(t, func() { reply, err = c.Ask(context.Background(), "Q") })

	require.NoError(t, err)
	assert.Equal(t, ErrorPrefix+"request aborted", reply.Content)
	assert.False(t, c.Busy())
	assert.Equal(t, 3, c.Len())
	last, _ := c.Last()
	assert.Equal(t, ErrorPrefix+"request aborted", last.Content)
}

type panicQuerier struct{}

func (panicQuerier) Query(context.Context, string) (*models.QueryResponse, error) {
	panic("boom")
}

func TestSendWhileBusyIsRefused(t *testing.T) {
	mock := NewMockBackend()
	mock.Block()
	c := NewQueryController(mock, QueryOptions{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Send(context.Background(), "first"))
	}()

	select {
	case <-mock.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the backend")
	}

	// The user message is visible while the request is in flight.
	assert.True(t, c.Busy())
	assert.Equal(t, 2, c.Len())
	last, _ := c.Last()
	assert.Equal(t, "first", last.Content)

	err := c.Send(context.Background(), "second")
	assert.ErrorIs(t, err, apperrors.ErrBusy)
	assert.Equal(t, 2, c.Len())

	mock.Release()
	wg.Wait()

	assert.False(t, c.Busy())
	assert.Equal(t, int32(1), mock.queries.Load())
	assert.Equal(t, 3, c.Len())
}

func TestSendSequenceGrowsByTwo(t *testing.T) {
	mock := NewMockBackend()
	c := NewQueryController(mock, QueryOptions{})

	questions := []string{"who", "", "what", "  ", "where", "when"}
	accepted := 0
	for _, q := range questions {
		before := c.Len()
		err := c.Send(context.Background(), q)
		if err != nil {
			assert.Equal(t, before, c.Len())
			continue
		}
		accepted++
		assert.Equal(t, before+2, c.Len())
		assert.False(t, c.Busy())
	}

	assert.Equal(t, 4, accepted)
	assert.Equal(t, 1+2*accepted, c.Len())

	msgs := c.Messages()
	for i := 1; i < len(msgs); i += 2 {
		assert.Equal(t, models.RoleUser, msgs[i].Role)
		assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	mock := NewMockBackend()
	mock.SetAnswer("X", []models.Source{{Text: "t", Similarity: 0.5, Filename: "f.txt"}})
	c := NewQueryController(mock, QueryOptions{})
	require.NoError(t, c.Send(context.Background(), "Q"))

	msgs := c.Messages()
	msgs[0].Content = "changed"
	msgs[2].Sources[0].Text = "changed"

	fresh := c.Messages()
	assert.NotEqual(t, "changed", fresh[0].Content)
	assert.Equal(t, "t", fresh[2].Sources[0].Text)
}

func TestOnMessageObservesAppends(t *testing.T) {
	var seen []models.Role
	c := NewQueryController(NewMockBackend(), QueryOptions{
		OnMessage: func(m models.Message) { seen = append(seen, m.Role) },
	})

	require.NoError(t, c.Send(context.Background(), "Q"))
	assert.Equal(t, []models.Role{models.RoleUser, models.RoleAssistant}, seen)
}

// Round trips through the real HTTP client against a stub backend.
func TestSendRoundTripOverHTTP(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, last models.Message)
	}{
		{
			name: "answer without sources",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "What pottery was found?", r.PostForm.Get("q"))
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"answer": "X", "sources": []interface{}{}})
			},
			check: func(t *testing.T, last models.Message) {
				assert.Equal(t, models.RoleAssistant, last.Role)
				assert.Equal(t, "X", last.Content)
				assert.NotNil(t, last.Sources)
				assert.Empty(t, last.Sources)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			check: func(t *testing.T, last models.Message) {
				assert.Equal(t, models.RoleAssistant, last.Role)
				assert.Contains(t, last.Content, "Error:")
				assert.Contains(t, last.Content, "500")
				assert.Nil(t, last.Sources)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := backend.NewClient(config.BackendConfig{BaseURL: server.URL}, zaptest.NewLogger(t))
			c := NewQueryController(client, QueryOptions{})

			require.NoError(t, c.Send(context.Background(), "What pottery was found?"))

			last, ok := c.Last()
			require.True(t, ok)
			tt.check(t, last)
			assert.False(t, c.Busy())
		})
	}
}

func TestSendTransportFailureOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewQueryController(backend.NewClient(config.BackendConfig{BaseURL: url}, nil), QueryOptions{})
	require.NoError(t, c.Send(context.Background(), "Q"))

	last, _ := c.Last()
	assert.Contains(t, last.Content, ErrorPrefix+"failed to reach backend")
	assert.False(t, c.Busy())
}

func TestAskReturnsAppendedReply(t *testing.T) {
	mock := NewMockBackend()
	mock.SetAnswer("Red-slipped ware", []models.Source{{Text: "sherds", Similarity: 0.9, Filename: "a.txt"}})
	c := NewQueryController(mock, QueryOptions{})

	reply, err := c.Ask(context.Background(), "What pottery was found?")
	require.NoError(t, err)

	last, _ := c.Last()
	assert.Equal(t, last, reply)
	assert.Equal(t, "Red-slipped ware", reply.Content)
	assert.True(t, reply.HasSources())

	_, err = c.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuestion)
}
