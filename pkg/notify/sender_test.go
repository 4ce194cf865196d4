package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func newTestSMTPSender(t *testing.T, sendErr error) (*SMTPSender, *[]*mail.Msg) {
	s, err := NewSMTPSender(SMTPConfig{
		Host:     "smtp.test",
		Port:     587,
		Username: "loans",
		Password: "secret",
		From:     "Loan Team <no-reply@loanapp.local>",
	})
	require.NoError(t, err)

	var sent []*mail.Msg
	s.sendMail = func(_ context.Context, msg *mail.Msg) error {
		sent = append(sent, msg)
		return sendErr
	}
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s, &sent
}

func renderMsg(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSMTPSender_Send(t *testing.T) {
	s, sent := newTestSMTPSender(t, nil)

	err := s.Send(context.Background(), Event{
		Kind:    KindApproved,
		To:      "asha@example.com",
		Subject: "🎉 Your Home Loan (ID: 1001) is Approved",
		Body:    "<p>hi</p>",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	raw := renderMsg(t, (*sent)[0])
	lower := strings.ToLower(raw)
	assert.Contains(t, raw, "no-reply@loanapp.local")
	assert.Contains(t, raw, "asha@example.com")
	assert.Contains(t, lower, "subject: =?utf-8?")
	assert.Contains(t, lower, "content-type: text/html")
	assert.Contains(t, raw, "Sat, 01 Mar 2025 09:00:00")
	assert.Contains(t, raw, "<p>hi</p>")
}

func TestSMTPSender_SendError(t *testing.T) {
	s, _ := newTestSMTPSender(t, errors.New("connection refused"))

	err := s.Send(context.Background(), Event{To: "asha@example.com", Subject: "x"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	s, sent := newTestSMTPSender(t, nil)

	err := s.Send(context.Background(), Event{To: "not an address", Subject: "x"})
	assert.Error(t, err)
	assert.Empty(t, *sent)
}

func TestSMTPSender_ContextReachesTransport(t *testing.T) {
	s, _ := newTestSMTPSender(t, nil)
	s.sendMail = func(ctx context.Context, _ *mail.Msg) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, Event{To: "asha@example.com", Subject: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSMTPSender_BadFrom(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "smtp.test", Port: 25, From: "loan team"})
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), Event{Kind: KindRejected, To: "a@example.com"}))
}
