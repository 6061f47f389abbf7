// Package services – RequestGate
//
// Gate turns one inbound chat message into at most one backend call. The
// sequence is trigger match, personality resolution, cache lookup, quota
// evaluation, generation, delivery and an asynchronous best-effort record.
//
// Observability: Handle is OpenTelemetry-instrumented and every decision is
// counted in karigpt_gate_outcomes_total.

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/karigpt-broker/internal/personality"
)

// Message is one inbound chat event.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	Text        string
}

// Channel delivers text to a destination.
type Channel interface {
	Send(ctx context.Context, channelID, text string) error
	// Typing shows a working indicator until the returned stop is called.
	Typing(ctx context.Context, channelID string) (stop func())
}

// Backend generates an answer under a system prompt.
type Backend interface {
	Generate(ctx context.Context, systemPrompt, question string) (string, error)
}

// TriggerMode selects how the trigger's leading identifier is read.
type TriggerMode int

const (
	// TriggerMulti treats the identifier as a personality name.
	TriggerMulti TriggerMode = iota
	// TriggerSingle accepts one fixed name bound to the default personality.
	TriggerSingle
)

// OutcomeKind labels what Handle did with a message.
type OutcomeKind string

const (
	OutcomeIgnored            OutcomeKind = "ignored"
	OutcomeUnknownPersonality OutcomeKind = "unknown_personality"
	OutcomeCached             OutcomeKind = "cached"
	OutcomeCooldown           OutcomeKind = "cooldown"
	OutcomeQuota              OutcomeKind = "quota"
	OutcomeAnswered           OutcomeKind = "answered"
	OutcomeOverload           OutcomeKind = "overload"
	OutcomeBackendError       OutcomeKind = "backend_error"
	OutcomeDeliveryFailed     OutcomeKind = "delivery_failed"
)

// Outcome describes one handled message. Err carries the taxonomy error
// behind a rejection or failure.
type Outcome struct {
	Kind        OutcomeKind
	Personality string
	Key         string
	Question    string
	Answer      string
	Count       int
	Err         error
}

// GateOptions configures NewGate.
type GateOptions struct {
	Mode          TriggerMode
	TriggerName   string
	WatchChannels []string
	Personalities *personality.Registry
	Cache         *ResponseCache
	Quota         *QuotaTracker
	Backend       Backend
	Channel       Channel
	// IsTransientOverload classifies backend error text. Nil means never.
	IsTransientOverload func(msg string) bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Gate is the request-gating pipeline. Handle is safe for concurrent use.
type Gate struct {
	mode     TriggerMode
	trigger  *regexp.Regexp
	watch    map[string]struct{}
	persons  *personality.Registry
	cache    *ResponseCache
	quota    *QuotaTracker
	backend  Backend
	channel  Channel
	overload func(string) bool
	now      func() time.Time
	log      zerolog.Logger

	// mu guards closed; inflight counts running Handle calls and the
	// record tasks they start.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewGate validates opts and compiles the trigger pattern.
func NewGate(opts GateOptions) (*Gate, error) {
	if opts.Personalities == nil || opts.Cache == nil || opts.Quota == nil || opts.Backend == nil || opts.Channel == nil {
		return nil, errors.New("gate: personalities, cache, quota, backend and channel are required")
	}
	var pattern string
	switch opts.Mode {
	case TriggerSingle:
		name := strings.TrimSpace(opts.TriggerName)
		if name == "" {
			return nil, errors.New("gate: trigger name is required in single mode")
		}
		pattern = `(?i)^` + regexp.QuoteMeta(name) + `\s*:\s*(.+?)\s*\?\s*$`
	case TriggerMulti:
		pattern = `(?i)^(` + personality.NameClass + `+)\s*:\s*(.+?)\s*\?\s*$`
	default:
		return nil, fmt.Errorf("gate: unknown trigger mode %d", opts.Mode)
	}

	g := &Gate{
		mode:     opts.Mode,
		trigger:  regexp.MustCompile(pattern),
		persons:  opts.Personalities,
		cache:    opts.Cache,
		quota:    opts.Quota,
		backend:  opts.Backend,
		channel:  opts.Channel,
		overload: opts.IsTransientOverload,
		now:      opts.Now,
		log:      log.With().Str("component", "gate").Logger(),
	}
	if g.overload == nil {
		g.overload = func(string) bool { return false }
	}
	if g.now == nil {
		g.now = time.Now
	}
	if len(opts.WatchChannels) > 0 {
		g.watch = make(map[string]struct{}, len(opts.WatchChannels))
		for _, id := range opts.WatchChannels {
			g.watch[id] = struct{}{}
		}
	}
	return g, nil
}

// Watches reports whether messages from channelID are considered.
func (g *Gate) Watches(channelID string) bool {
	if g.watch == nil {
		return true
	}
	_, ok := g.watch[channelID]
	return ok
}

// Match parses a trigger. It returns the personality identifier ("" in
// single mode) and the question text.
func (g *Gate) Match(text string) (name, question string, ok bool) {
	m := g.trigger.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	if g.mode == TriggerSingle {
		return "", strings.TrimSpace(m[1]), true
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// Handle gates one message. The returned error is non-nil only when a
// reply could not be delivered (*DeliveryError) or the gate is closed
// (ErrGateClosed); every other outcome, including rejections, is reported
// through Outcome.
func (g *Gate) Handle(ctx context.Context, msg Message) (Outcome, error) {
	if !g.enter() {
		return Outcome{Kind: OutcomeIgnored, Err: ErrGateClosed}, ErrGateClosed
	}
	defer g.inflight.Done()

	ctx, span := otel.Tracer("services/Gate").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("channel.id", msg.ChannelID),
			attribute.String("user.id", msg.AuthorID),
		))
	defer span.End()

	out, err := g.handle(ctx, msg)
	gateOutcomes.WithLabelValues(string(out.Kind)).Inc()
	span.SetAttributes(attribute.String("gate.outcome", string(out.Kind)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (g *Gate) handle(ctx context.Context, msg Message) (Outcome, error) {
	if msg.AuthorIsBot || !g.Watches(msg.ChannelID) {
		return Outcome{Kind: OutcomeIgnored, Err: ErrTriggerMismatch}, nil
	}
	name, question, ok := g.Match(msg.Text)
	if !ok {
		return Outcome{Kind: OutcomeIgnored, Err: ErrTriggerMismatch}, nil
	}

	p, tag := g.persons.Default(), ""
	if g.mode == TriggerMulti {
		var found bool
		if p, found = g.persons.Get(name); !found {
			out := Outcome{Kind: OutcomeUnknownPersonality, Personality: name, Question: question, Err: ErrUnknownPersonality}
			return out, g.send(ctx, msg.ChannelID, UnknownPersonalityText(name, g.persons.Names()))
		}
		tag = p.Name
	}
	label := p.Label()
	key := Normalize(question, tag)
	out := Outcome{Personality: p.Name, Key: key, Question: question}
	lg := g.log.With().Str("user_id", msg.AuthorID).Str("personality", p.Name).Str("key", key).Logger()

	// An empty key would alias every letterless question.
	if key != "" {
		if cached, hit := g.cache.Lookup(ctx, key); hit {
			out.Kind, out.Answer = OutcomeCached, cached
			lg.Debug().Msg("answered from memory")
			return out, g.send(ctx, msg.ChannelID, CachedAnswerText(label, cached))
		}
	}

	now := g.now()
	dec, err := g.quota.Evaluate(ctx, msg.AuthorID, now)
	out.Count = dec.Count
	if err != nil {
		out.Err = err
		var cd *CooldownError
		var qe *QuotaExceededError
		switch {
		case errors.As(err, &cd):
			out.Kind = OutcomeCooldown
			return out, g.send(ctx, msg.ChannelID, CooldownText(label, cd.Remaining))
		case errors.As(err, &qe):
			out.Kind = OutcomeQuota
			return out, g.send(ctx, msg.ChannelID, LimitText(label, qe.ResetIn))
		}
		return out, err
	}

	stop := g.channel.Typing(ctx, msg.ChannelID)
	start := time.Now()
	answer, err := g.backend.Generate(ctx, p.Prompt, question)
	backendLatency.Observe(time.Since(start).Seconds())
	stop()

	status := StatusText(label, dec.Remaining(), dec.ResetIn)
	if err != nil {
		berr := &BackendError{Err: err, Overload: g.overload(err.Error())}
		out.Err = berr
		text := ErrorText(label, err)
		out.Kind = OutcomeBackendError
		if berr.Overload {
			out.Kind = OutcomeOverload
			text = OverloadText(label)
		}
		lg.Warn().Err(err).Bool("overload", berr.Overload).Msg("backend call failed")
		if serr := g.send(ctx, msg.ChannelID, text); serr != nil {
			return out, serr
		}
		return out, g.send(ctx, msg.ChannelID, status)
	}

	out.Answer = answer
	if serr := g.send(ctx, msg.ChannelID, AnswerText(label, answer)); serr != nil {
		out.Kind, out.Err = OutcomeDeliveryFailed, serr
		lg.Error().Err(serr).Msg("answer delivery failed")
		if nerr := g.send(ctx, msg.ChannelID, DeliveryNoticeText(label)); nerr != nil {
			lg.Error().Err(nerr).Msg("failure notice delivery failed")
		}
		return out, serr
	}

	out.Kind = OutcomeAnswered
	out.Count = dec.Count + 1
	g.record(ctx, RecordInput{
		UserID:        msg.AuthorID,
		Username:      msg.AuthorName,
		Key:           key,
		Answer:        answer,
		DailyLimit:    dec.Limit,
		CountAtInsert: out.Count,
		At:            g.now(),
	})

	after := Decision{Count: out.Count, Limit: dec.Limit}
	if serr := g.send(ctx, msg.ChannelID, StatusText(label, after.Remaining(), dec.ResetIn)); serr != nil {
		lg.Warn().Err(serr).Msg("status line delivery failed")
		return out, serr
	}
	return out, nil
}

// record persists in the background, detached from ctx cancellation. It
// runs inside Handle, whose own inflight slot keeps the counter above zero.
func (g *Gate) record(ctx context.Context, in RecordInput) {
	bg := context.WithoutCancel(ctx)
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		if err := g.cache.Record(bg, in); err != nil {
			recordFailures.Inc()
		}
	}()
}

func (g *Gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.inflight.Add(1)
	return true
}

// Wait blocks until every running Handle call and every background record
// task has finished. Handle calls may still start afterwards; use Close to
// stop admission first.
func (g *Gate) Wait() { g.inflight.Wait() }

// Close stops admitting messages and waits for in-flight ones, including
// their record tasks. Later Handle calls return ErrGateClosed.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.inflight.Wait()
}

func (g *Gate) send(ctx context.Context, channelID, text string) error {
	if err := g.channel.Send(ctx, channelID, text); err != nil {
		return &DeliveryError{ChannelID: channelID, Err: err}
	}
	return nil
}
