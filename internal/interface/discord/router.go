// Package discord serves Discord interactions (slash commands) received over
// HTTP. Every request is verified against the application's public key.
package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	api "github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// maxBodyBytes bounds an interaction payload.
const maxBodyBytes = 1 << 20

// Replies shown to the invoker when something goes wrong.
const (
	msgUnknownCommand = "Commande inconnue."
	msgInternalError  = "Une erreur est survenue, réessayez plus tard."
)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// PublicKey verifies request signatures.
	PublicKey ed25519.PublicKey

	// Timeout bounds one command; Discord drops replies after 3s.
	Timeout time.Duration

	// Metrics is optional.
	Metrics *metrics.Collector

	// Logger for structured logging.
	Logger *slog.Logger
}

// CommandHandler answers one slash command.
type CommandHandler interface {
	Handle(ctx context.Context, i *api.Interaction) (*api.InteractionResponse, error)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, i *api.Interaction) (*api.InteractionResponse, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, i *api.Interaction) (*api.InteractionResponse, error) {
	return f(ctx, i)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router routes interactions to command handlers by command name.
type Router struct {
	config RouterConfig
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewRouter creates a router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 2500 * time.Millisecond
	}
	return &Router{
		config:   config,
		logger:   config.Logger.With("component", "interactions"),
		handlers: make(map[string]CommandHandler),
	}
}

// Register binds a handler to a command name.
func (r *Router) Register(name string, h CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch answers a decoded interaction. It never returns nil: failures
// become an ephemeral message.
func (r *Router) Dispatch(ctx context.Context, i *api.Interaction) *api.InteractionResponse {
	if i.Type == api.InteractionTypePing {
		return api.Pong()
	}
	if i.Type != api.InteractionTypeApplicationCommand || i.Data == nil {
		return api.ReplyEphemeral(msgUnknownCommand)
	}

	name := i.Data.Name
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("unknown command", "command", name)
		return api.ReplyEphemeral(msgUnknownCommand)
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	resp, err := r.run(ctx, h, i)
	r.config.Metrics.ObserveCommand(name, err)
	if err != nil || resp == nil {
		r.logger.Error("command failed", "command", name, "interaction_id", i.ID, "error", err)
		return api.ReplyEphemeral(msgInternalError)
	}

	r.logger.Debug("command served", "command", name, "interaction_id", i.ID)
	return resp
}

// run calls the handler, turning a panic into an error.
func (r *Router) run(ctx context.Context, h CommandHandler, i *api.Interaction) (resp *api.InteractionResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panic recovered",
				"command", i.Data.Name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			resp, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Handle(ctx, i)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP ENDPOINT
// ══════════════════════════════════════════════════════════════════════════════

// ServeHTTP implements the interactions endpoint.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	sig := req.Header.Get("X-Signature-Ed25519")
	ts := req.Header.Get("X-Signature-Timestamp")
	if len(r.config.PublicKey) == 0 || !api.VerifyInteraction(r.config.PublicKey, sig, ts, body) {
		r.logger.Warn("rejected interaction with invalid signature", "remote_addr", req.RemoteAddr)
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var i api.Interaction
	if err := json.Unmarshal(body, &i); err != nil {
		http.Error(w, "invalid interaction payload", http.StatusBadRequest)
		return
	}

	resp := r.Dispatch(req.Context(), &i)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		r.logger.Error("failed to write interaction response", "error", err)
	}
}
