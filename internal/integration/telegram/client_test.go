package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledClientIsNoOp(t *testing.T) {
	c := NewClient(Config{}) // no token, no channel
	require.False(t, c.Enabled())

	id, err := c.SendChannelMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.Empty(t, id)
	require.NoError(t, c.UpdateChannelMessage(context.Background(), "1", "hello"))
	require.NoError(t, c.DeleteChannelMessage(context.Background(), "1"))
	require.NoError(t, c.SendDirectMessage(context.Background(), "42", "hello"))
}

func TestSendChannelMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":515}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Token: "test-token", ChannelID: "-100123"})
	c.baseURL = srv.URL

	id, err := c.SendChannelMessage(context.Background(), "<b>Заявка APP-20260831-00001</b>")
	require.NoError(t, err)
	require.Equal(t, "515", id)
	require.Equal(t, "/bottest-token/sendMessage", gotPath)
	require.Equal(t, "-100123", gotBody["chat_id"])
	require.Equal(t, "HTML", gotBody["parse_mode"])
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Token: "test-token", ChannelID: "-100123"})
	c.baseURL = srv.URL

	_, err := c.SendChannelMessage(context.Background(), "hello")
	require.ErrorContains(t, err, "chat not found")
}
