package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/karigpt-broker/internal/commands"
)

// Send posts text to a channel, clipped to MaxMessageLen. Blank text is a
// no-op.
func (c *Connector) Send(ctx context.Context, channelID, text string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return errors.New("discord: channel id is required")
	}
	content := Clip(text)
	if content == "" {
		return nil
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{"content": content}, true, nil)
}

// Typing triggers the channel's typing indicator and refreshes it until stop
// is called or ctx ends. Indicator failures are logged only.
func (c *Connector) Typing(ctx context.Context, channelID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		endpoint := fmt.Sprintf("%s/channels/%s/typing", c.apiBase, strings.TrimSpace(channelID))
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if err := c.do(ctx, http.MethodPost, endpoint, nil, true, nil); err != nil && ctx.Err() == nil {
				c.log.Debug().Err(err).Str("channel_id", channelID).Msg("typing indicator failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (c *Connector) respond(ctx context.Context, i interactionCreate, reply commands.Reply) error {
	data := map[string]any{"content": Clip(reply.Text)}
	if reply.Ephemeral {
		data["flags"] = flagEphemeral
	}
	return c.callback(ctx, i, map[string]any{"type": callbackMessage, "data": data})
}

func (c *Connector) callback(ctx context.Context, i interactionCreate, body map[string]any) error {
	if strings.TrimSpace(i.ID) == "" || strings.TrimSpace(i.Token) == "" {
		return errors.New("missing interaction id or token")
	}
	endpoint := fmt.Sprintf("%s/interactions/%s/%s/callback", c.apiBase, i.ID, i.Token)
	// Interaction callbacks are authorized by the token in the path.
	return c.do(ctx, http.MethodPost, endpoint, body, false, nil)
}

// SyncCommands registers commands.SlashCommands globally, or per guild when
// guild ids are configured.
func (c *Connector) SyncCommands(ctx context.Context) error {
	appID, err := c.resolveApplicationID(ctx)
	if err != nil {
		return err
	}
	payload := CommandPayload(commands.SlashCommands())
	if len(c.guildIDs) == 0 {
		endpoint := fmt.Sprintf("%s/applications/%s/commands", c.apiBase, appID)
		return c.do(ctx, http.MethodPut, endpoint, payload, true, nil)
	}
	for _, guildID := range c.guildIDs {
		endpoint := fmt.Sprintf("%s/applications/%s/guilds/%s/commands", c.apiBase, appID, guildID)
		if err := c.do(ctx, http.MethodPut, endpoint, payload, true, nil); err != nil {
			return err
		}
	}
	c.log.Info().Int("commands", len(payload)).Int("guilds", len(c.guildIDs)).Msg("slash commands synced")
	return nil
}

func (c *Connector) resolveApplicationID(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.applicationID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	var app struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/oauth2/applications/@me", nil, true, &app); err != nil {
		return "", fmt.Errorf("application lookup: %w", err)
	}
	id = strings.TrimSpace(app.ID)
	if id == "" {
		return "", errors.New("application lookup returned empty id")
	}
	c.mu.Lock()
	c.applicationID = id
	c.mu.Unlock()
	return id, nil
}

// Option types used in the registration payload.
const (
	commandTypeChatInput = 1
	optionTypeString     = 3
)

// CommandPayload converts the command table into Discord's registration
// body.
func CommandPayload(cmds []commands.Command) []map[string]any {
	out := make([]map[string]any, 0, len(cmds))
	for _, cmd := range cmds {
		name := strings.TrimSpace(cmd.Name)
		if name == "" {
			continue
		}
		entry := map[string]any{
			"name":        name,
			"description": description(cmd.Description),
			"type":        commandTypeChatInput,
		}
		if len(cmd.Options) > 0 {
			opts := make([]map[string]any, 0, len(cmd.Options))
			for _, o := range cmd.Options {
				opts = append(opts, map[string]any{
					"type":         optionTypeString,
					"name":         o.Name,
					"description":  description(o.Description),
					"required":     o.Required,
					"autocomplete": o.Autocomplete,
				})
			}
			entry["options"] = opts
		}
		out = append(out, entry)
	}
	return out
}

func description(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return "KariGPT command"
	}
	if len(d) > 100 {
		return strings.TrimSpace(d[:100])
	}
	return d
}

// do sends one REST call. A nil body sends no payload; a non-nil out
// decodes the response.
func (c *Connector) do(ctx context.Context, method, endpoint string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bot "+c.token)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord %s %s failed: status=%d body=%s", method, req.URL.Path, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode discord response: %w", err)
		}
	}
	return nil
}
