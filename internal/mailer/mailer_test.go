package mailer

import (
	"context"
	"errors"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"shipmentportal/pkg/circuitbreaker"
	"shipmentportal/pkg/config"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []*mail.Msg
	err  error
}

func (f *fakeTransport) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func TestSendBuildsHTMLMessage(t *testing.T) {
	tr := &fakeTransport{}
	m := newMailer("noreply@seaironline.com", time.Second, tr, nil)

	err := m.Send(context.Background(), Message{
		To:      []string{"ops@vhc.com", "lead@vhc.com"},
		Subject: "Milestone Update: Vessel Departed - BK1001",
		HTML:    "<p>hello</p>",
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)

	msg := tr.sent[0]
	assert.Equal(t, []string{"Milestone Update: Vessel Departed - BK1001"}, msg.GetGenHeader(mail.HeaderSubject))

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ops@vhc.com", "lead@vhc.com"}, rcpts)

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	body, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", string(body))
}

func TestSendWithoutRecipients(t *testing.T) {
	tr := &fakeTransport{}
	m := newMailer("noreply@seaironline.com", time.Second, tr, nil)

	err := m.Send(context.Background(), Message{Subject: "x", HTML: "y"})
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, tr.sent)
}

func TestTemporaryFailuresOpenBreaker(t *testing.T) {
	tr := &fakeTransport{err: &textproto.Error{Code: 421, Msg: "service not available"}}
	m := newMailer("noreply@seaironline.com", time.Second, tr, nil)
	msg := Message{To: []string{"ops@vhc.com"}, Subject: "s", HTML: "b"}

	threshold := circuitbreaker.DefaultConfig().FailureThreshold
	for i := 0; i < threshold; i++ {
		err := m.Send(context.Background(), msg)
		require.Error(t, err)
		assert.False(t, errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen))
	}

	assert.Equal(t, circuitbreaker.StateOpen, m.BreakerState())
	assert.ErrorIs(t, m.Send(context.Background(), msg), circuitbreaker.ErrCircuitBreakerOpen)
}

func TestPermanentFailuresKeepBreakerClosed(t *testing.T) {
	tr := &fakeTransport{err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}}
	m := newMailer("noreply@seaironline.com", time.Second, tr, nil)
	msg := Message{To: []string{"nobody@vhc.com"}, Subject: "s", HTML: "b"}

	for i := 0; i < 10; i++ {
		err := m.Send(context.Background(), msg)
		var tpErr *textproto.Error
		require.ErrorAs(t, err, &tpErr)
		assert.Equal(t, 550, tpErr.Code)
	}
	assert.Equal(t, circuitbreaker.StateClosed, m.BreakerState())
}

func TestNewRequiresHostAndFrom(t *testing.T) {
	_, err := New(config.SMTPConfig{From: "a@b.com"}, nil)
	assert.Error(t, err)

	_, err = New(config.SMTPConfig{Host: "smtp.example.com"}, nil)
	assert.Error(t, err)

	m, err := New(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "secret",
		From:     "noreply@seaironline.com",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSendTimeout, m.timeout)
}
