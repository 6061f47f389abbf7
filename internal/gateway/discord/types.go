package discord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxMessageLen is Discord's content limit for one message.
const MaxMessageLen = 2000

// Clip trims content to MaxMessageLen, marking the cut with "...".
func Clip(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= MaxMessageLen {
		return trimmed
	}
	cut := MaxMessageLen - 3
	// Back off to a rune boundary.
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return strings.TrimSpace(trimmed[:cut]) + "..."
}

type envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type hello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type ready struct {
	User author `json:"user"`
}

type messageCreate struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    author `json:"author"`
}

// Interaction types.
const (
	interactionCommand      = 2
	interactionAutocomplete = 4
)

// Interaction callback types.
const (
	callbackMessage      = 4
	callbackAutocomplete = 8
)

// flagEphemeral hides an interaction reply from everyone but the caller.
const flagEphemeral = 1 << 6

type interactionCreate struct {
	ID        string          `json:"id"`
	Type      int             `json:"type"`
	Token     string          `json:"token"`
	ChannelID string          `json:"channel_id"`
	GuildID   string          `json:"guild_id"`
	Data      interactionData `json:"data"`
	Member    struct {
		User author `json:"user"`
	} `json:"member"`
	User author `json:"user"`
}

// caller prefers the guild member over the DM user.
func (i interactionCreate) caller() author {
	if strings.TrimSpace(i.Member.User.ID) != "" {
		return i.Member.User
	}
	return i.User
}

type interactionData struct {
	Name    string              `json:"name"`
	Options []interactionOption `json:"options"`
}

type interactionOption struct {
	Name    string `json:"name"`
	Type    int    `json:"type"`
	Value   any    `json:"value"`
	Focused bool   `json:"focused"`
}

func (o interactionOption) valueString() string {
	switch v := o.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

type author struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

func (a author) displayName() string {
	if n := strings.TrimSpace(a.Username); n != "" {
		return n
	}
	if n := strings.TrimSpace(a.GlobalName); n != "" {
		return n
	}
	return a.ID
}
