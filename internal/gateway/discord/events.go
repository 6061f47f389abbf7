package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/services"
)

func (c *Connector) handleMessageCreate(ctx context.Context, m messageCreate) {
	if m.Author.Bot || m.Author.ID == c.BotUserID() {
		return
	}
	msg := services.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.displayName(),
		AuthorIsBot: m.Author.Bot,
		Text:        m.Content,
	}
	lg := c.log.With().Str("channel_id", m.ChannelID).Str("message_id", m.ID).Logger()

	out, err := c.handler.Handle(ctx, msg)
	if errors.Is(err, services.ErrGateClosed) {
		lg.Debug().Msg("gate closed, message dropped")
		return
	}
	if err != nil {
		lg.Error().Err(err).Str("outcome", string(out.Kind)).Msg("gate delivery failed")
		return
	}
	if out.Kind != services.OutcomeIgnored {
		lg.Info().Str("outcome", string(out.Kind)).Str("personality", out.Personality).Msg("message gated")
		return
	}

	// Not a trigger: fall back to text commands.
	if c.commands == nil {
		return
	}
	inv, ok := commands.Parse(m.Content)
	if !ok {
		return
	}
	inv.UserID, inv.ChannelID = m.Author.ID, m.ChannelID
	reply, err := c.commands.Execute(ctx, inv)
	if err != nil {
		lg.Error().Err(err).Str("command", inv.Name).Msg("text command failed")
		return
	}
	for _, text := range []string{reply.Text, reply.ChannelText} {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := c.Send(ctx, m.ChannelID, text); err != nil {
			lg.Error().Err(err).Str("command", inv.Name).Msg("text command reply failed")
			return
		}
	}
}

func (c *Connector) handleInteraction(ctx context.Context, i interactionCreate) error {
	if c.commands == nil {
		return errors.New("no command runner bound")
	}
	switch i.Type {
	case interactionCommand:
		return c.handleCommand(ctx, i)
	case interactionAutocomplete:
		return c.handleAutocomplete(ctx, i)
	}
	return nil
}

func (c *Connector) handleCommand(ctx context.Context, i interactionCreate) error {
	name := strings.ToLower(strings.TrimSpace(i.Data.Name))
	if name == "" {
		return c.respond(ctx, i, commands.Reply{Text: "Unsupported command payload.", Ephemeral: true})
	}
	inv := commands.Invocation{
		Name:      name,
		Args:      make(map[string]string, len(i.Data.Options)),
		UserID:    i.caller().ID,
		ChannelID: i.ChannelID,
	}
	for _, o := range i.Data.Options {
		inv.Args[o.Name] = strings.TrimSpace(o.valueString())
	}

	reply, err := c.commands.Execute(ctx, inv)
	if err != nil {
		c.log.Error().Err(err).Str("command", name).Msg("slash command failed")
		reply = commands.Reply{Text: "I hit an error while running that command.", Ephemeral: true}
	}
	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = "Command received."
	}
	if err := c.respond(ctx, i, reply); err != nil {
		return err
	}
	if strings.TrimSpace(reply.ChannelText) != "" {
		if err := c.Send(ctx, i.ChannelID, reply.ChannelText); err != nil {
			return fmt.Errorf("relay to channel: %w", err)
		}
	}
	return nil
}

func (c *Connector) handleAutocomplete(ctx context.Context, i interactionCreate) error {
	var option, partial string
	for _, o := range i.Data.Options {
		if o.Focused {
			option, partial = o.Name, o.valueString()
			break
		}
	}
	if option == "" && len(i.Data.Options) > 0 {
		option, partial = i.Data.Options[0].Name, i.Data.Options[0].valueString()
	}
	names := c.commands.Autocomplete(strings.ToLower(i.Data.Name), option, partial)
	// Discord caps autocomplete at 25 choices.
	if len(names) > 25 {
		names = names[:25]
	}
	choices := make([]map[string]string, 0, len(names))
	for _, n := range names {
		choices = append(choices, map[string]string{"name": n, "value": n})
	}
	return c.callback(ctx, i, map[string]any{
		"type": callbackAutocomplete,
		"data": map[string]any{"choices": choices},
	})
}
