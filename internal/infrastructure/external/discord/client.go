// Package discord implements the slice of the Discord REST API the tracker
// needs: posting messages and files to a channel, registering slash commands
// and looking up users.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/gmz-labs/voicexp/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the versioned REST endpoint.
const DefaultBaseURL = "https://discord.com/api/v10"

// ClientConfig contains configuration for the Discord client.
type ClientConfig struct {
	// Token is the bot token, sent as "Authorization: Bot <token>".
	Token string

	// ApplicationID owns the slash commands.
	ApplicationID string

	// BaseURL is the REST base URL (default: DefaultBaseURL).
	BaseURL string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Retrier retries transient failures (default: retry.DiscordRetrier).
	Retrier *retry.Retrier

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token, applicationID string) ClientConfig {
	return ClientConfig{
		Token:         token,
		ApplicationID: applicationID,
		BaseURL:       DefaultBaseURL,
		Timeout:       15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// User is a Discord user.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// DisplayName prefers the global display name over the username.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL is the CDN URL of the user's avatar, empty when unset.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	return "https://cdn.discordapp.com/avatars/" + u.ID + "/" + u.Avatar + ".png"
}

// Message is a channel message as returned by the API.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small text under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedImage references an image by URL.
type EmbedImage struct {
	URL string `json:"url"`
}

// AllowedMentions restricts which mentions in the content ping anyone.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Users []string `json:"users,omitempty"`
}

// MessageParams is the body of a create-message call.
type MessageParams struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`
}

// Attachment describes an uploaded file inside payload_json.
type Attachment struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// Application command types and option types.
const (
	CommandTypeChatInput = 1

	OptionTypeUser = 6
)

// ApplicationCommand is a slash command definition.
type ApplicationCommand struct {
	ID          string          `json:"id,omitempty"`
	Type        int             `json:"type,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

// CommandOption is an argument of a slash command.
type CommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Discord REST client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewClient creates a new Discord client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	logger := config.Logger.With("component", "discord_client")
	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.DiscordRetrier(func(attempt int, err error, delay time.Duration) {
			logger.Warn("discord call retrying",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		})
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retrier,
		logger:     logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID string, params MessageParams) (*Message, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	var msg Message
	path := "/channels/" + channelID + "/messages"
	if err := c.call(ctx, http.MethodPost, path, "application/json", body, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// SendText posts plain text, pinging only the listed users.
func (c *Client) SendText(ctx context.Context, channelID, content string, mentionUserIDs ...string) (*Message, error) {
	return c.SendMessage(ctx, channelID, MessageParams{
		Content:         content,
		AllowedMentions: &AllowedMentions{Parse: []string{}, Users: mentionUserIDs},
	})
}

// SendFile posts a message with one attached file.
func (c *Client) SendFile(ctx context.Context, channelID, content, filename string, data []byte) (*Message, error) {
	body, contentType, err := fileBody(content, filename, data)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var msg Message
	path := "/channels/" + channelID + "/messages"
	if err := c.call(ctx, http.MethodPost, path, contentType, body, &msg); err != nil {
		return nil, fmt.Errorf("send file: %w", err)
	}
	return &msg, nil
}

// fileBody builds the multipart form: payload_json plus files[0].
func fileBody(content, filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	payload, err := json.Marshal(MessageParams{
		Content:         content,
		AllowedMentions: &AllowedMentions{Parse: []string{}},
		Attachments:     []Attachment{{ID: 0, Filename: filename}},
	})
	if err != nil {
		return nil, "", err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="payload_json"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}

	header = make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[0]"; filename=%q`, filename))
	header.Set("Content-Type", "application/json")
	part, err = w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS & USERS
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCommands overwrites the application's slash commands. With a guild
// ID they are registered for that guild only, which takes effect at once.
func (c *Client) RegisterCommands(ctx context.Context, guildID string, commands []ApplicationCommand) ([]ApplicationCommand, error) {
	if c.config.ApplicationID == "" {
		return nil, ErrNoApplicationID
	}

	body, err := json.Marshal(commands)
	if err != nil {
		return nil, fmt.Errorf("marshal commands: %w", err)
	}

	path := "/applications/" + c.config.ApplicationID + "/commands"
	if guildID != "" {
		path = "/applications/" + c.config.ApplicationID + "/guilds/" + guildID + "/commands"
	}

	var registered []ApplicationCommand
	if err := c.call(ctx, http.MethodPut, path, "application/json", body, &registered); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return registered, nil
}

// GetUser fetches a user by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, "/users/"+userID, "", nil, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// call performs a request with retries. body is replayed on every attempt.
func (c *Client) call(ctx context.Context, method, path, contentType string, body []byte, result any) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, path, contentType, body, result)
	})
}

// do performs a single request. Errors worth another attempt come back
// wrapped with retry.Retryable.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.config.Token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/gmz-labs/voicexp, 1.0)")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("discord api call", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		if apiErr.Temporary() {
			return retry.Retryable(apiErr)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Message    string  `json:"message"`
		Code       int     `json:"code"`
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		apiErr.Code = payload.Code
		apiErr.RetryAfterSeconds = payload.RetryAfter
		apiErr.Global = payload.Global
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(http.StatusText(status))
	}
	return apiErr
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoApplicationID is returned by RegisterCommands without an application ID.
var ErrNoApplicationID = errors.New("discord application id not configured")

// APIError is a non-2xx answer from the Discord API.
type APIError struct {
	Status            int
	Code              int
	Message           string
	RetryAfterSeconds float64
	Global            bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord api error %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("discord api error %d: %s", e.Status, e.Message)
}

// Temporary reports rate limiting and server-side failures.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// RetryAfter is the wait the API asked for, zero when none.
func (e *APIError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds * float64(time.Second))
}

// Unwrap maps the answer onto the domain error taxonomy.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return shared.ErrDiscordRateLimited
	}
	return shared.ErrDiscordAPIFailed
}

// IsForbidden reports a missing permission, e.g. the bot cannot post in
// the configured channel.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

// IsNotFound reports an unknown channel, user or application.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
