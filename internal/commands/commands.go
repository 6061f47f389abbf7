// Package commands implements the read-only slash commands shared by the
// Discord interaction path and the HTTP ingress: personality listing and
// description, usage metrics, daily status and the relay command.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/karigpt-broker/internal/personality"
	"github.com/tbourn/karigpt-broker/internal/services"
)

// ErrUnknownCommand is returned by Execute for an unregistered name.
var ErrUnknownCommand = errors.New("unknown command")

// Option is one slash-command argument.
type Option struct {
	Name         string
	Description  string
	Required     bool
	Autocomplete bool
}

// Command describes one slash command for registration.
type Command struct {
	Name        string
	Description string
	Options     []Option
}

// SlashCommands returns the registration table.
func SlashCommands() []Command {
	return []Command{
		{Name: "angels", Description: "View available fallen angels"},
		{Name: "angel", Description: "View details about a fallen angel", Options: []Option{
			{Name: "name", Description: "Select a fallen angel", Required: true, Autocomplete: true},
		}},
		{Name: "oracle_metrics", Description: "View request metrics"},
		{Name: "metrics", Description: "View request metrics"},
		{Name: "daily_status", Description: "Check how many requests are left today and time until reset"},
		{Name: "reply", Description: "Answer as the bot", Options: []Option{
			{Name: "message", Description: "The message the bot should send", Required: true},
		}},
	}
}

// Invocation is one parsed command call.
type Invocation struct {
	Name      string
	Args      map[string]string
	UserID    string
	ChannelID string
}

// Reply is the command result. ChannelText, when set, is posted to the
// invoking channel as a normal bot message.
type Reply struct {
	Text        string `json:"text"`
	Ephemeral   bool   `json:"ephemeral"`
	ChannelText string `json:"channel_text,omitempty"`
}

// Processor executes commands.
type Processor struct {
	Personalities *personality.Registry
	Metrics       *services.MetricsAggregator
	Quota         *services.QuotaTracker
	Location      *time.Location
	// Label names the broker in status output.
	Label string
	Now   func() time.Time
	Log   zerolog.Logger
}

// NewProcessor wires a Processor with defaults for label and clock.
func NewProcessor(reg *personality.Registry, metrics *services.MetricsAggregator, quota *services.QuotaTracker, loc *time.Location, label string) *Processor {
	if loc == nil {
		loc = time.UTC
	}
	if label == "" {
		label = reg.Default().Label()
	}
	return &Processor{
		Personalities: reg,
		Metrics:       metrics,
		Quota:         quota,
		Location:      loc,
		Label:         label,
		Now:           time.Now,
		Log:           log.With().Str("component", "commands").Logger(),
	}
}

// Parse reads a text command such as "/angel tag" or "/reply hello there".
// The remainder after the name binds to the command's first option.
func Parse(text string) (Invocation, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Invocation{}, false
	}
	name, rest, _ := strings.Cut(text[1:], " ")
	name = strings.ToLower(name)
	for _, c := range SlashCommands() {
		if c.Name != name {
			continue
		}
		inv := Invocation{Name: name, Args: map[string]string{}}
		if rest = strings.TrimSpace(rest); rest != "" && len(c.Options) > 0 {
			inv.Args[c.Options[0].Name] = rest
		}
		return inv, true
	}
	return Invocation{}, false
}

// Execute runs inv.
func (p *Processor) Execute(ctx context.Context, inv Invocation) (Reply, error) {
	switch inv.Name {
	case "angels":
		return p.angels(), nil
	case "angel":
		return p.angel(inv.Args["name"]), nil
	case "oracle_metrics", "metrics":
		return p.metrics(ctx), nil
	case "daily_status":
		return p.dailyStatus(ctx, inv.UserID), nil
	case "reply":
		return p.reply(inv.Args["message"]), nil
	}
	return Reply{}, fmt.Errorf("%w: %q", ErrUnknownCommand, inv.Name)
}

// Autocomplete returns choices for a partially typed option value.
func (p *Processor) Autocomplete(command, option, partial string) []string {
	if command == "angel" && option == "name" {
		return p.Personalities.Suggest(partial)
	}
	return nil
}

func (p *Processor) angels() Reply {
	var b strings.Builder
	b.WriteString("😈 **Fallen Angels**\n")
	b.WriteString("Invoke one by starting your message with:\n`angel_name: your question?`\n\n")
	b.WriteString("🔥 **Available Angels**\n")
	for _, n := range p.Personalities.Names() {
		fmt.Fprintf(&b, "• **%s**\n", n)
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n"), Ephemeral: true}
}

func (p *Processor) angel(name string) Reply {
	pers, ok := p.Personalities.Get(name)
	if !ok {
		return Reply{Text: fmt.Sprintf("❌ Fallen angel `%s` not found.", name), Ephemeral: true}
	}
	desc := pers.Description
	if desc == "" {
		desc = pers.Prompt
	}
	return Reply{Text: fmt.Sprintf("😈 **Fallen Angel: %s**\n%s", pers.Name, desc), Ephemeral: true}
}

func (p *Processor) metrics(ctx context.Context) Reply {
	s, err := p.Metrics.Summarize(ctx, p.Now())
	if err != nil {
		p.Log.Error().Err(err).Msg("summarize failed")
		return Reply{Text: "❌ Failed to generate metrics."}
	}
	if s.Empty {
		return Reply{Text: services.EmptySummaryText}
	}
	return Reply{Text: RenderSummary(s, p.Label, p.Location.String())}
}

// RenderSummary formats a metrics summary as chat markdown.
func RenderSummary(s services.Summary, label, zone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔮 **%s Metrics**\n\n", label)
	b.WriteString("🌐 **Global Stats**\n")
	fmt.Fprintf(&b, "Total requests: **%d**\n", s.Total)
	fmt.Fprintf(&b, "Average per day: **%s**\n", num(s.AvgPerDay))
	fmt.Fprintf(&b, "Max requests in a single day: **%d**\n\n", s.MaxPerDay)

	fmt.Fprintf(&b, "📅 **Today (%s)**\n", zone)
	fmt.Fprintf(&b, "Total requests today: **%d**\n", s.Today.Total)
	for _, u := range s.Today.PerUser {
		fmt.Fprintf(&b, "- %s: **%d**\n", who(u.Username, u.UserID), u.Count)
	}

	b.WriteString("\n👤 **Per Player**\n")
	for _, u := range s.PerUser {
		fmt.Fprintf(&b, "%s: Total **%d**, Avg/day **%s**, Max/day **%d**\n",
			who(u.Username, u.UserID), u.Total, num(u.AvgPerDay), u.MaxPerDay)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "\n_%d records skipped (unreadable timestamp)_\n", s.Skipped)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Processor) dailyStatus(ctx context.Context, userID string) Reply {
	st := p.Quota.Status(ctx, userID, p.Now())
	h, m, _ := services.SplitHMS(st.ResetIn)
	return Reply{Text: fmt.Sprintf(
		"🌟 **%s Daily Status**\n✅ Requests used today: **%d**\n🟢 Requests remaining: **%d**\n⏳ Time until next reset (%s): **%dh %dm**",
		p.Label, st.Used, st.Remaining, p.Location.String(), h, m)}
}

func (p *Processor) reply(message string) Reply {
	if strings.TrimSpace(message) == "" {
		return Reply{Text: "❌ Nothing to send.", Ephemeral: true}
	}
	return Reply{Text: "✅ Sent.", Ephemeral: true, ChannelText: message}
}

func who(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
