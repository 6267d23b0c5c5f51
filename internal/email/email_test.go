package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/pkg/httpretry"
	"github.com/incosense/incosense/internal/pkg/logger"
)

func testSubscription(t *testing.T, name string) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscriber(name, "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	return &domain.Subscription{ID: "sub-1", Subscriber: sub, SubscribedAt: time.Now()}
}

func testComposer(t *testing.T, confirmURL string) *Composer {
	t.Helper()
	from, err := domain.ParseSubscriberEmail("news@incosense.example")
	require.NoError(t, err)
	c, err := NewComposer(from, confirmURL, DefaultConfirmation)
	require.NoError(t, err)
	return c
}

func TestComposer_Compose(t *testing.T) {
	msg, err := testComposer(t, "https://incosense.example/confirm").Compose(testSubscription(t, "le guin"))
	require.NoError(t, err)

	assert.Equal(t, "news@incosense.example", msg.From)
	assert.Equal(t, "ursula_le_guin@gmail.com", msg.To)
	assert.Equal(t, "Welcome to the newsletter, le guin", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hi le guin,")
	assert.Contains(t, msg.HTMLBody, `href="https://incosense.example/confirm?subscription_id=sub-1"`)
	assert.Contains(t, msg.TextBody, "Confirm your subscription: https://incosense.example/confirm?subscription_id=sub-1")
}

func TestComposer_EscapesHTML(t *testing.T) {
	msg, err := testComposer(t, "").Compose(testSubscription(t, `O'Brien & "Sons"`))
	require.NoError(t, err)

	assert.Contains(t, msg.HTMLBody, "Brien &amp; ")
	assert.NotContains(t, msg.HTMLBody, `& "Sons"`)
	assert.NotContains(t, msg.HTMLBody, "href=")
	assert.NotContains(t, msg.TextBody, "Confirm your subscription")
}

func TestComposer_SubjectIsSingleLine(t *testing.T) {
	msg, err := testComposer(t, "").Compose(testSubscription(t, "le\r\nBcc: x@evil.example\tguin"))
	require.NoError(t, err)

	assert.Equal(t, "Welcome to the newsletter, le  Bcc: x@evil.example guin", msg.Subject)
	assert.NotContains(t, msg.Subject, "\n")
	assert.NotContains(t, msg.Subject, "\r")
	assert.Contains(t, msg.TextBody, "le\r\nBcc", "bodies keep the name as submitted")
}

func TestNewComposer_Errors(t *testing.T) {
	_, err := NewComposer(domain.SubscriberEmail{}, "", DefaultConfirmation)
	assert.Error(t, err)

	from, _ := domain.ParseSubscriberEmail("news@incosense.example")
	_, err = NewComposer(from, "", Templates{Subject: "{% if %}", HTML: "", Text: ""})
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	s := &SESSender{client: fake}

	err := s.Send(context.Background(), &Message{
		From: "news@incosense.example", To: "a@b.co", Subject: "hi",
		HTMLBody: "<p>x</p>", TextBody: "x", Tag: "t",
	})
	require.NoError(t, err)

	in := fake.input
	assert.Equal(t, "news@incosense.example", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"a@b.co"}, in.Destination.ToAddresses)
	assert.Equal(t, "hi", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>x</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	assert.Equal(t, "x", aws.ToString(in.Content.Simple.Body.Text.Data))
	require.Len(t, in.EmailTags, 1)

	fake.err = errors.New("throttled")
	assert.ErrorContains(t, s.Send(context.Background(), &Message{To: "a@b.co"}), "throttled")

	assert.ErrorIs(t, (&SESSender{}).Send(context.Background(), &Message{}), ErrNotConfigured)
}

func TestBuildSendEmailInput_TextOnly(t *testing.T) {
	in := buildSendEmailInput(&Message{From: "f@x.co", To: "t@x.co", Subject: "s", TextBody: "body"})
	assert.Nil(t, in.Content.Simple.Body.Html)
	assert.NotNil(t, in.Content.Simple.Body.Text)
	assert.Empty(t, in.EmailTags)
}

func TestPostmarkSender_Send(t *testing.T) {
	var got postmarkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pm-token", r.Header.Get("X-Postmark-Server-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"pm-1"}`))
	}))
	defer srv.Close()

	s := NewPostmarkSender(srv.URL, "pm-token", srv.Client())
	err := s.Send(context.Background(), &Message{From: "news@incosense.example", To: "a@b.co", Subject: "hi", HTMLBody: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "news@incosense.example", got.From)
	assert.Equal(t, "a@b.co", got.To)
	assert.Equal(t, "<p>x</p>", got.HtmlBody)
}

func TestPostmarkSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid 'To' address"}`))
	}))
	defer srv.Close()

	err := NewPostmarkSender(srv.URL, "t", srv.Client()).Send(context.Background(), &Message{To: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "Invalid 'To' address")

	assert.ErrorIs(t, NewPostmarkSender("", "t", srv.Client()).Send(context.Background(), &Message{}), ErrNotConfigured)
}

func TestPostmarkSender_RetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ErrorCode":0}`))
	}))
	defer srv.Close()

	doer := httpretry.New(srv.Client(),
		httpretry.WithBackoff(time.Millisecond, time.Millisecond),
		httpretry.WithLogger(logger.New(io.Discard, logger.ERROR)))
	require.NoError(t, NewPostmarkSender(srv.URL, "t", doer).Send(context.Background(), &Message{To: "a@b.co"}))
	assert.Equal(t, 2, calls)
}

type recordingSender struct {
	msgs     []*Message
	deadline bool
}

func (r *recordingSender) Send(ctx context.Context, msg *Message) error {
	_, r.deadline = ctx.Deadline()
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestConfirmationNotifier(t *testing.T) {
	rs := &recordingSender{}
	n := NewConfirmationNotifier(rs, testComposer(t, ""), 5*time.Second)

	require.NoError(t, n.SendConfirmation(context.Background(), testSubscription(t, "le guin")))
	require.Len(t, rs.msgs, 1)
	assert.Equal(t, "ursula_le_guin@gmail.com", rs.msgs[0].To)
	assert.True(t, rs.deadline)
}
