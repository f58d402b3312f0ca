package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTIONS
// Payloads Discord POSTs to the interactions endpoint, and the replies.
// ══════════════════════════════════════════════════════════════════════════════

// Interaction types.
const (
	InteractionTypePing               = 1
	InteractionTypeApplicationCommand = 2
)

// Interaction response types and message flags.
const (
	ResponseTypePong                     = 1
	ResponseTypeChannelMessageWithSource = 4

	MessageFlagEphemeral = 1 << 6
)

// Interaction is an incoming interaction.
type Interaction struct {
	ID      string           `json:"id"`
	Type    int              `json:"type"`
	Token   string           `json:"token"`
	GuildID string           `json:"guild_id,omitempty"`
	Data    *InteractionData `json:"data,omitempty"`

	// Member is set inside a guild, User in direct messages.
	Member *GuildMember `json:"member,omitempty"`
	User   *User        `json:"user,omitempty"`
}

// GuildMember is the invoking member of a guild interaction.
type GuildMember struct {
	User *User  `json:"user"`
	Nick string `json:"nick,omitempty"`
}

// InteractionData carries the invoked command.
type InteractionData struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     int                 `json:"type"`
	Options  []InteractionOption `json:"options,omitempty"`
	Resolved *ResolvedData       `json:"resolved,omitempty"`
}

// InteractionOption is one supplied command argument.
type InteractionOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ResolvedData holds full objects for IDs referenced by options.
type ResolvedData struct {
	Users   map[string]User        `json:"users,omitempty"`
	Members map[string]GuildMember `json:"members,omitempty"`
}

// Invoker returns the user who ran the command.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// OptionString returns a string-valued option (user IDs included).
func (i *Interaction) OptionString(name string) (string, bool) {
	if i.Data == nil {
		return "", false
	}
	for _, opt := range i.Data.Options {
		if opt.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(opt.Value, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return "", false
}

// OptionUser resolves a user option; ok is false when it was not supplied.
func (i *Interaction) OptionUser(name string) (*User, bool) {
	id, ok := i.OptionString(name)
	if !ok {
		return nil, false
	}
	if i.Data.Resolved != nil {
		if u, found := i.Data.Resolved.Users[id]; found {
			return &u, true
		}
	}
	return &User{ID: id}, true
}

// InteractionResponse is the synchronous reply to an interaction.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionCallbackData `json:"data,omitempty"`
}

// InteractionCallbackData is the message part of a reply.
type InteractionCallbackData struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
	Flags           int              `json:"flags,omitempty"`
}

// Pong acknowledges a PING.
func Pong() *InteractionResponse {
	return &InteractionResponse{Type: ResponseTypePong}
}

// ReplyEmbeds answers in the channel with embeds. Mentions inside never ping.
func ReplyEmbeds(embeds ...Embed) *InteractionResponse {
	return &InteractionResponse{
		Type: ResponseTypeChannelMessageWithSource,
		Data: &InteractionCallbackData{
			Embeds:          embeds,
			AllowedMentions: &AllowedMentions{Parse: []string{}},
		},
	}
}

// ReplyEphemeral answers with text only the invoker sees.
func ReplyEphemeral(content string) *InteractionResponse {
	return &InteractionResponse{
		Type: ResponseTypeChannelMessageWithSource,
		Data: &InteractionCallbackData{
			Content:         content,
			AllowedMentions: &AllowedMentions{Parse: []string{}},
			Flags:           MessageFlagEphemeral,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SIGNATURE VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidPublicKey is returned for a malformed application public key.
var ErrInvalidPublicKey = errors.New("invalid discord public key")

// ParsePublicKey decodes the hex public key shown in the developer portal.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// VerifyInteraction checks the X-Signature-Ed25519 header against
// timestamp || body.
func VerifyInteraction(key ed25519.PublicKey, signatureHex, timestamp string, body []byte) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(key, msg, sig)
}
