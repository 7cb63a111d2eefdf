package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projecttracker/pkg/circuitbreaker"
	"projecttracker/pkg/config"
)

func sample() Message {
	return Message{To: Addresses{"pm@example.com"}, Subject: "Reminder", Text: "due soon", HTML: "<p>due soon</p>"}
}

func TestResendSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_123"}`))
	}))
	defer srv.Close()

	s, err := NewResendSender("re_key", "tracker@example.com", time.Second)
	require.NoError(t, err)
	s.endpoint = srv.URL

	res, err := s.Send(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, MessageID: "re_123", Provider: "resend"}, res)
	assert.Equal(t, "tracker@example.com", got["from"])
	assert.Equal(t, []any{"pm@example.com"}, got["to"])
	assert.Equal(t, "<p>due soon</p>", got["html"])
}

func TestResendSenderSurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	s, err := NewResendSender("re_key", "bad", time.Second)
	require.NoError(t, err)
	s.endpoint = srv.URL

	res, err := s.Send(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.False(t, res.Success)
}

func TestSendGridSender(t *testing.T) {
	var got struct {
		Personalizations []struct {
			To []sendGridAddress `json:"to"`
		} `json:"personalizations"`
		From    sendGridAddress   `json:"from"`
		Content []sendGridContent `json:"content"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-Message-Id", "sg-9")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSendGridSender("sg_key", "tracker@example.com", time.Second)
	require.NoError(t, err)
	s.endpoint = srv.URL

	res, err := s.Send(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "sg-9", res.MessageID)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "pm@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "tracker@example.com", got.From.Email)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
}

type stubSender struct {
	calls atomic.Int32
	err   error
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(context.Context, Message) (Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Success: true, MessageID: "m-1"}, nil
}

func TestGuardedSendsOnceWithoutRetry(t *testing.T) {
	stub := &stubSender{err: errors.New("connection reset")}
	g := NewGuarded(stub, circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}, zap.NewNop())
	ctx := context.Background()

	_, err := g.Send(ctx, sample())
	require.Error(t, err)
	assert.EqualValues(t, 1, stub.calls.Load())

	_, _ = g.Send(ctx, sample())
	_, err = g.Send(ctx, sample())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.EqualValues(t, 2, stub.calls.Load())
}

func TestGuardedRejectsInvalidMessage(t *testing.T) {
	stub := &stubSender{}
	g := NewGuarded(stub, circuitbreaker.DefaultConfig(), zap.NewNop())

	_, err := g.Send(context.Background(), Message{Subject: "no one"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.EqualValues(t, 0, stub.calls.Load())
}

func TestGuardedSuccess(t *testing.T) {
	g := NewGuarded(&stubSender{}, circuitbreaker.DefaultConfig(), zap.NewNop())
	res, err := g.Send(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, MessageID: "m-1", Provider: "stub"}, res)
}

func TestNewFromConfig(t *testing.T) {
	g, err := NewFromConfig(config.MailConfig{Provider: "sendgrid", SendGridAPIKey: "k", From: "a@x.io"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", g.Name())

	g, err = NewFromConfig(config.MailConfig{SMTPHost: "localhost", From: "a@x.io"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "smtp", g.Name())

	_, err = NewFromConfig(config.MailConfig{Provider: "resend"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewFromConfig(config.MailConfig{Provider: "pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSMTPMessageBuild(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", From: "tracker@example.com"})
	require.NoError(t, err)

	m, err := s.buildMessage(sample())
	require.NoError(t, err)
	assert.NotEmpty(t, m.GetMessageID())

	bad := sample()
	bad.To = Addresses{"not an address"}
	_, err = s.buildMessage(bad)
	assert.Error(t, err)
}
