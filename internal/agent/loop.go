// Package agent implements the message handler: response decisions,
// prompt assembly, generation and reply sanitation.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ucai/ucaibot/internal/bus"
	"github.com/ucai/ucaibot/internal/policy"
	"github.com/ucai/ucaibot/internal/session"
)

// Referencer resolves the text of a message another message replies to.
type Referencer interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (string, error)
}

// Outcome describes what Handle did with a message.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeInfo     Outcome = "info"
	OutcomeReplied  Outcome = "replied"
	OutcomeFallback Outcome = "fallback"
)

// LoopOptions contains the dependencies for creating a Loop.
type LoopOptions struct {
	Bus        *bus.MessageBus
	Responder  *Responder
	Policy     policy.Engine
	Buffer     *session.Buffer
	Referencer Referencer
	// ChannelID is the channel the info query is answered in.
	ChannelID string
	StartTime time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

// Loop consumes inbound messages one at a time, so the buffer and the
// policy cooldown have a single writer.
type Loop struct {
	bus        *bus.MessageBus
	responder  *Responder
	policy     policy.Engine
	buffer     *session.Buffer
	referencer Referencer
	channelID  string
	startTime  time.Time
	now        func() time.Time
	running    atomic.Bool
}

// NewLoop creates a new agent loop.
func NewLoop(opts LoopOptions) *Loop {
	buf := opts.Buffer
	if buf == nil {
		buf = session.NewBuffer(session.DefaultCapacity)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	start := opts.StartTime
	if start.IsZero() {
		start = now()
	}
	return &Loop{
		bus:        opts.Bus,
		responder:  opts.Responder,
		policy:     opts.Policy,
		buffer:     buf,
		referencer: opts.Referencer,
		channelID:  opts.ChannelID,
		startTime:  start,
		now:        now,
	}
}

// Buffer exposes the conversation memory.
func (l *Loop) Buffer() *session.Buffer { return l.buffer }

// Run processes messages from the bus until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)
	slog.Info("Agent loop started", "channel_id", l.channelID, "model", l.responder.Model())

	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Agent loop stopped")
				return nil
			}
			slog.Error("Failed to consume message", "error", err)
			continue
		}
		l.Handle(ctx, msg)
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Handle evaluates one inbound message and replies when the policy allows.
func (l *Loop) Handle(ctx context.Context, msg *bus.InboundMessage) Outcome {
	if IsInfoQuery(msg.Content) {
		if msg.FromSelf || msg.ChannelID != l.channelID {
			return OutcomeSkipped
		}
		l.publishInfo(msg)
		return OutcomeInfo
	}

	d := l.policy.Evaluate(policy.Context{
		ChannelID: msg.ChannelID,
		FromSelf:  msg.FromSelf,
		Mentioned: msg.Mentioned,
		Now:       msg.Timestamp,
		TraceID:   msg.TraceID,
	})
	if !d.Respond {
		slog.Debug("Skipping message", "trace_id", msg.TraceID, "reason", d.Reason)
		return OutcomeSkipped
	}

	input := l.resolveInput(ctx, msg)
	reply := l.responder.Respond(ctx, input, l.buffer.Snapshot(HistoryWindow))
	text := Sanitize(reply.Text)
	slog.Debug("Final reply", "trace_id", msg.TraceID, "reply", text)

	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   msg.Channel,
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		ReplyTo:   msg.MessageID,
		TraceID:   msg.TraceID,
		Content:   text,
	})

	if reply.Failed() {
		return OutcomeFallback
	}
	l.buffer.AppendExchange(strings.TrimSpace(input), strings.TrimSpace(text))
	slog.Info("Replied", "trace_id", msg.TraceID, "trigger", d.Trigger, "history", l.buffer.Len())
	return OutcomeReplied
}

// ProcessDirect generates a reply without policy or bus I/O (for CLI usage).
// The exchange is remembered like a channel exchange.
func (l *Loop) ProcessDirect(ctx context.Context, content string) (string, error) {
	reply := l.responder.Respond(ctx, content, l.buffer.Snapshot(HistoryWindow))
	text := Sanitize(reply.Text)
	if reply.Failed() {
		return text, fmt.Errorf("generation failed: %w", reply.Err)
	}
	l.buffer.AppendExchange(strings.TrimSpace(content), strings.TrimSpace(text))
	return text, nil
}

// resolveInput quotes the referenced message when it can be fetched.
func (l *Loop) resolveInput(ctx context.Context, msg *bus.InboundMessage) string {
	if !msg.HasReference() || l.referencer == nil {
		return msg.Content
	}
	quoted, err := l.referencer.FetchMessage(ctx, msg.ChannelID, msg.ReferenceID)
	if err != nil {
		slog.Debug("Could not fetch replied message", "trace_id", msg.TraceID, "reference_id", msg.ReferenceID, "error", err)
		return msg.Content
	}
	return fmt.Sprintf("(In response to '%s') %s", quoted, msg.Content)
}

func (l *Loop) publishInfo(msg *bus.InboundMessage) {
	card := InfoCard(l.responder.Model(), l.now().Sub(l.startTime))
	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   msg.Channel,
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		TraceID:   msg.TraceID,
		Content:   CardText(card),
		Card:      card,
	})
	slog.Info("Info requested", "trace_id", msg.TraceID)
}
