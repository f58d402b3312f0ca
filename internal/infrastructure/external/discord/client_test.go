package discord

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/gmz-labs/voicexp/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("secret", "app-1")
	cfg.BaseURL = srv.URL
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithJitter(0),
	)
	return NewClient(cfg)
}

func TestSendText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/42/messages", r.URL.Path)
		assert.Equal(t, "Bot secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body MessageParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Félicitations <@7>", body.Content)
		require.NotNil(t, body.AllowedMentions)
		assert.Equal(t, []string{"7"}, body.AllowedMentions.Users)
		assert.Empty(t, body.AllowedMentions.Parse)

		_, _ = w.Write([]byte(`{"id":"m1","channel_id":"42","content":"ok"}`))
	})

	msg, err := c.SendText(t.Context(), "42", "Félicitations <@7>", "7")

	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
}

func TestSendFile_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var payload MessageParams
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload_json")), &payload))
		assert.Equal(t, "digest abc", payload.Content)
		require.Len(t, payload.Attachments, 1)
		assert.Equal(t, "database.json", payload.Attachments[0].Filename)

		f, header, err := r.FormFile("files[0]")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "database.json", header.Filename)
		assert.Equal(t, `[{"memberId":"a","xp":1}]`, string(data))

		_, _ = w.Write([]byte(`{"id":"m2","channel_id":"9"}`))
	})

	msg, err := c.SendFile(t.Context(), "9", "digest abc", "database.json", []byte(`[{"memberId":"a","xp":1}]`))

	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
}

func TestCall_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.01,"global":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice","global_name":"Alice"}`))
	})

	user, err := c.GetUser(t.Context(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Missing Permissions","code":50013}`))
	})

	_, err := c.SendText(t.Context(), "42", "hello")

	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, shared.ErrDiscordAPIFailed)
	assert.True(t, shared.IsExternalService(err))
	assert.Contains(t, err.Error(), "code 50013")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_ServerErrorExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetUser(t.Context(), "u1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegisterCommands(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/applications/app-1/guilds/g1/commands", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), `"name":"rank"`))
		_, _ = w.Write([]byte(`[{"id":"c1","name":"rank","description":"x"}]`))
	})

	cmds, err := c.RegisterCommands(t.Context(), "g1", []ApplicationCommand{{
		Type:        CommandTypeChatInput,
		Name:        "rank",
		Description: "x",
		Options:     []CommandOption{{Type: OptionTypeUser, Name: "user", Description: "u"}},
	}})

	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "c1", cmds[0].ID)
}

func TestRegisterCommands_RequiresApplicationID(t *testing.T) {
	c := NewClient(ClientConfig{Token: "secret"})

	_, err := c.RegisterCommands(t.Context(), "", nil)

	assert.ErrorIs(t, err, ErrNoApplicationID)
}

func TestAPIError_RetryAfter(t *testing.T) {
	err := parseAPIError(http.StatusTooManyRequests, []byte(`{"message":"slow down","retry_after":1.5}`))

	assert.True(t, err.Temporary())
	assert.Equal(t, 1500*time.Millisecond, err.RetryAfter())

	d, ok := retry.RetryAfter(retry.Retryable(err))
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)
}
