package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/readingstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleView() *readingstore.ShareableView {
	return &readingstore.ShareableView{
		ID:          "3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		ShareURL:    "https://asksian.com/view-reading?id=3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		ReadingType: reading.TypeQuestion,
		SpreadName:  "Three Card",
		Question:    "Will I get the job?",
		UserName:    "Sian",
		CreatedAt:   time.Date(2026, 10, 16, 15, 4, 0, 0, time.UTC),
	}
}

func TestCompose(t *testing.T) {
	msg, err := Compose(sampleView(), ComposeOptions{
		To:         " friend@example.com ",
		FriendName: "Alex",
		Note:       "Thought you'd like this",
	})
	require.NoError(t, err)

	assert.Equal(t, "friend@example.com", msg.To)
	assert.Equal(t, "🔮 Your Tarot Reading from Sian", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "Hi Alex!\n\nThought you'd like this\n\n"))
	assert.Contains(t, msg.Body, "Sian has shared a tarot reading with you using Ask Sian!")
	assert.Contains(t, msg.Body, "• Reading Type: Specific Question")
	assert.Contains(t, msg.Body, "• Spread: Three Card")
	assert.Contains(t, msg.Body, "• Date: October 16, 2026 at 03:04 PM")
	assert.Contains(t, msg.Body, `• Question: "Will I get the job?"`)
	assert.Contains(t, msg.Body, "View your reading here: "+msg.ShareURL)
	assert.Equal(t, "3f2504e0-4f89-41d3-9a0c-0305e82c3301", msg.ReadingID)
}

func TestCompose_Defaults(t *testing.T) {
	view := sampleView()
	view.UserName = ""
	view.Question = ""
	view.ReadingType = reading.TypeHoroscope

	msg, err := Compose(view, ComposeOptions{To: "friend@example.com", SiteName: "Mystic Cards"})
	require.NoError(t, err)
	assert.Equal(t, "🔮 Your Tarot Reading from A friend", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "Hi there!\n\nA friend has shared"))
	assert.Contains(t, msg.Body, "Daily Horoscope")
	assert.NotContains(t, msg.Body, "Question:")
	assert.True(t, strings.HasSuffix(msg.Body, "shared via Mystic Cards - Free AI-Powered Tarot Readings"))
}

func TestCompose_Invalid(t *testing.T) {
	_, err := Compose(sampleView(), ComposeOptions{To: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Compose(nil, ComposeOptions{To: "friend@example.com"})
	assert.ErrorIs(t, err, ErrMissingShareURL)
}

func TestFunctionSender(t *testing.T) {
	var got Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	msg, err := Compose(sampleView(), ComposeOptions{To: "friend@example.com", FriendName: "Alex"})
	require.NoError(t, err)

	sender := NewFunctionSender(srv.URL+"/functions/v1/send-email", "key", time.Second)
	require.NoError(t, sender.Send(context.Background(), msg))
	assert.Equal(t, "Bearer key", auth)
	assert.Equal(t, msg.To, got.To)
	assert.Equal(t, msg.Subject, got.Subject)
	assert.Equal(t, "Alex", got.FriendName)
	assert.Equal(t, msg.ShareURL, got.ShareURL)
}

func TestFunctionSender_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"recipient rejected"}`))
	}))
	defer srv.Close()

	sender := NewFunctionSender(srv.URL, "", time.Second)
	err := sender.Send(context.Background(), &Message{To: "friend@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), &Message{To: "friend@example.com"}))
}
