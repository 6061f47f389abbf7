// Package discord connects the request gate to Discord: a websocket gateway
// session for inbound events and the REST API for delivery, typing
// indicators, interaction replies and slash-command registration.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/services"
)

// Defaults for Options.
const (
	DefaultAPIBase    = "https://discord.com/api/v10"
	DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
)

const (
	intentGuilds          = 1 << 0
	intentGuildMessages   = 1 << 9
	intentDirectMessages  = 1 << 12
	intentMessageContents = 1 << 15
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

const (
	reconnectDelay = 2 * time.Second
	typingInterval = 8 * time.Second
	userAgent      = "karigpt-broker/1.0"
)

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg services.Message) (services.Outcome, error)
}

// CommandRunner executes slash and text commands.
type CommandRunner interface {
	Execute(ctx context.Context, inv commands.Invocation) (commands.Reply, error)
	Autocomplete(command, option, partial string) []string
}

// Options configures a Connector.
type Options struct {
	Token           string
	APIBase         string
	GatewayURL      string
	ApplicationID   string
	CommandSync     bool
	CommandGuildIDs []string
	HTTPClient      *http.Client
}

// Connector is one Discord bot session. It implements services.Channel.
type Connector struct {
	token         string
	apiBase       string
	gatewayURL    string
	applicationID string
	commandSync   bool
	guildIDs      []string
	httpClient    *http.Client
	log           zerolog.Logger

	handler  MessageHandler
	commands CommandRunner

	mu        sync.RWMutex
	botUserID string
	synced    bool

	// handlers counts dispatched event goroutines.
	handlers sync.WaitGroup
}

// New returns an unbound connector; call Bind before Start.
func New(o Options) *Connector {
	apiBase := strings.TrimRight(strings.TrimSpace(o.APIBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	gatewayURL := strings.TrimSpace(o.GatewayURL)
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	var guilds []string
	for _, g := range o.CommandGuildIDs {
		if g = strings.TrimSpace(g); g != "" {
			guilds = append(guilds, g)
		}
	}
	return &Connector{
		token:         strings.TrimSpace(o.Token),
		apiBase:       apiBase,
		gatewayURL:    gatewayURL,
		applicationID: strings.TrimSpace(o.ApplicationID),
		commandSync:   o.CommandSync,
		guildIDs:      guilds,
		httpClient:    client,
		log:           log.With().Str("component", "discord").Logger(),
	}
}

// Bind attaches the inbound consumers. The gate needs the connector as its
// Channel, so binding happens after both exist.
func (c *Connector) Bind(handler MessageHandler, cmds CommandRunner) {
	c.handler = handler
	c.commands = cmds
}

// BotUserID is the id reported by READY, or "" before the first session.
func (c *Connector) BotUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

// Start runs gateway sessions until ctx is cancelled, reconnecting after
// reconnectDelay whenever a session ends.
func (c *Connector) Start(ctx context.Context) error {
	if c.token == "" {
		c.log.Info().Msg("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.handler == nil {
		return errors.New("discord: connector started without a message handler")
	}

	c.log.Info().Str("gateway", c.gatewayURL).Msg("connector started")
	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("connector stopped")
			return nil
		}
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.log.Info().Msg("connector stopped")
			return nil
		}
		c.log.Error().Err(err).Msg("discord session ended, reconnecting")
		select {
		case <-ctx.Done():
			c.log.Info().Msg("connector stopped")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Wait blocks until every dispatched message and interaction handler has
// returned. Call it after Start has returned.
func (c *Connector) Wait() { c.handlers.Wait() }

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	var (
		writeMu  sync.Mutex
		sequence atomic.Int64
	)

	interval, err := readHello(conn)
	if err != nil {
		return err
	}
	if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}
	go c.heartbeatLoop(sessionCtx, conn, &writeMu, &sequence, interval)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Error().Err(err).Msg("decode gateway envelope failed")
			continue
		}
		if env.S != nil {
			sequence.Store(*env.S)
		}

		switch env.Op {
		case opDispatch:
			c.dispatch(ctx, env)
		case opHeartbeat:
			if err := sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case opReconnect:
			return errors.New("gateway requested reconnect")
		case opInvalidSession:
			return errors.New("gateway invalid session")
		}
	}
}

func readHello(conn *websocket.Conn) (time.Duration, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return 0, fmt.Errorf("decode hello payload: %w", err)
		}
		if env.Op != opHello {
			continue
		}
		var h hello
		if err := json.Unmarshal(env.D, &h); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(h.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) dispatch(ctx context.Context, env envelope) {
	switch env.T {
	case "READY":
		var r ready
		if err := json.Unmarshal(env.D, &r); err != nil {
			c.log.Error().Err(err).Msg("decode ready failed")
			return
		}
		c.mu.Lock()
		c.botUserID = strings.TrimSpace(r.User.ID)
		first := !c.synced
		c.synced = true
		c.mu.Unlock()
		c.log.Info().Str("bot_user_id", r.User.ID).Str("bot_name", r.User.displayName()).Msg("gateway ready")
		if first && c.commandSync {
			go func() {
				if err := c.SyncCommands(ctx); err != nil {
					c.log.Error().Err(err).Msg("slash command sync failed")
				}
			}()
		}
	case "MESSAGE_CREATE":
		var m messageCreate
		if err := json.Unmarshal(env.D, &m); err != nil {
			c.log.Error().Err(err).Msg("decode message create failed")
			return
		}
		c.handlers.Add(1)
		go func() {
			defer c.handlers.Done()
			c.handleMessageCreate(ctx, m)
		}()
	case "INTERACTION_CREATE":
		var i interactionCreate
		if err := json.Unmarshal(env.D, &i); err != nil {
			c.log.Error().Err(err).Msg("decode interaction create failed")
			return
		}
		c.handlers.Add(1)
		go func() {
			defer c.handlers.Done()
			if err := c.handleInteraction(ctx, i); err != nil {
				c.log.Error().Err(err).Str("command", i.Data.Name).Msg("handle interaction failed")
			}
		}()
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, seq *atomic.Int64, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sendHeartbeat(conn, writeMu, seq.Load()); err != nil {
				c.log.Error().Err(err).Msg("heartbeat failed")
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   c.token,
			"intents": intentGuilds | intentGuildMessages | intentDirectMessages | intentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "karigpt-broker",
				"device":  "karigpt-broker",
			},
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, seq int64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	payload := map[string]any{"op": opHeartbeat, "d": seq}
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}
