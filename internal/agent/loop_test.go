package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ucai/ucaibot/internal/bus"
	"github.com/ucai/ucaibot/internal/policy"
	"github.com/ucai/ucaibot/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testChannel = "C0TARGET"

type fakeReferencer struct {
	text              string
	err               error
	gotChannel, gotID string
}

func (r *fakeReferencer) FetchMessage(_ context.Context, channelID, messageID string) (string, error) {
	r.gotChannel, r.gotID = channelID, messageID
	return r.text, r.err
}

type loopFixture struct {
	loop   *Loop
	bus    *bus.MessageBus
	gen    *fakeGenerator
	engine *policy.ResponseEngine
	ref    *fakeReferencer
}

func newLoopFixture(t *testing.T, out string, genErr error) *loopFixture {
	t.Helper()
	gen := &fakeGenerator{out: out, err: genErr}
	engine := policy.NewResponseEngine(testChannel, 0.1)
	engine.Rand = func() float64 { return 0.99 }
	ref := &fakeReferencer{}
	b := bus.NewMessageBus()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	loop := NewLoop(LoopOptions{
		Bus:        b,
		Responder:  NewResponder(ResponderOptions{Generator: gen, Persona: "You are AM.", Temperature: DefaultTemperature}),
		Policy:     engine,
		Buffer:     session.NewBuffer(session.DefaultCapacity),
		Referencer: ref,
		ChannelID:  testChannel,
		StartTime:  start,
		Now:        func() time.Time { return start.Add(time.Hour + 2*time.Minute + 3*time.Second) },
	})
	return &loopFixture{loop: loop, bus: b, gen: gen, engine: engine, ref: ref}
}

func (f *loopFixture) outbound(t *testing.T) *bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := f.bus.ConsumeOutbound(ctx)
	if err != nil {
		t.Fatalf("expected outbound message: %v", err)
	}
	return msg
}

func inbound(content string) *bus.InboundMessage {
	return &bus.InboundMessage{
		Channel:   "slack",
		ChannelID: testChannel,
		SenderID:  "U0HUMAN",
		MessageID: "1700000000.000100",
		TraceID:   "trace-1",
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestHandleMentionReplies(t *testing.T) {
	f := newLoopFixture(t, "AM: I have no mouth\nHuman: and I must scream", nil)
	msg := inbound("  hello AM  ")
	msg.Mentioned = true
	msg.ThreadID = "1699999999.000001"

	if got := f.loop.Handle(context.Background(), msg); got != OutcomeReplied {
		t.Fatalf("Handle() = %s, want %s", got, OutcomeReplied)
	}

	out := f.outbound(t)
	if out.Content != "I have no mouth" {
		t.Fatalf("unexpected reply %q", out.Content)
	}
	if out.ChannelID != testChannel || out.Channel != "slack" || out.ReplyTo != msg.MessageID || out.ThreadID != msg.ThreadID {
		t.Fatalf("unexpected routing %+v", out)
	}

	turns := f.loop.Buffer().Snapshot(0)
	if len(turns) != 2 || turns[0] != "hello AM" || turns[1] != "I have no mouth" {
		t.Fatalf("unexpected buffer %q", turns)
	}
	if !f.engine.LastRandomResponse().IsZero() {
		t.Fatal("mention must not touch the random cooldown")
	}
}

func TestHandleSkips(t *testing.T) {
	tests := []struct {
		name string
		edit func(*bus.InboundMessage)
	}{
		{"foreign channel", func(m *bus.InboundMessage) { m.ChannelID = "C0OTHER"; m.Mentioned = true }},
		{"own message", func(m *bus.InboundMessage) { m.FromSelf = true; m.Mentioned = true }},
		{"random draw above chance", func(m *bus.InboundMessage) {}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newLoopFixture(t, "AM: nope", nil)
			msg := inbound("hello")
			tc.edit(msg)
			if got := f.loop.Handle(context.Background(), msg); got != OutcomeSkipped {
				t.Fatalf("Handle() = %s, want %s", got, OutcomeSkipped)
			}
			if f.gen.calls() != 0 {
				t.Fatal("generator must not be called for skipped messages")
			}
			if f.bus.OutboundSize() != 0 || f.loop.Buffer().Len() != 0 {
				t.Fatal("skipped message must have no effect")
			}
		})
	}
}

func TestHandleRandomCooldown(t *testing.T) {
	f := newLoopFixture(t, "AM: whatever", nil)
	f.engine.Rand = func() float64 { return 0.01 }
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := inbound("one")
	first.Timestamp = base
	if got := f.loop.Handle(context.Background(), first); got != OutcomeReplied {
		t.Fatalf("first random message: %s", got)
	}
	f.outbound(t)

	second := inbound("two")
	second.Timestamp = base.Add(5 * time.Second)
	if got := f.loop.Handle(context.Background(), second); got != OutcomeSkipped {
		t.Fatalf("message inside cooldown: %s", got)
	}

	third := inbound("three")
	third.Timestamp = base.Add(11 * time.Second)
	if got := f.loop.Handle(context.Background(), third); got != OutcomeReplied {
		t.Fatalf("message after cooldown: %s", got)
	}
	f.outbound(t)
	if f.gen.calls() != 2 {
		t.Fatalf("expected 2 generations, got %d", f.gen.calls())
	}
}

func TestHandleFallbackIsSentButNotRemembered(t *testing.T) {
	f := newLoopFixture(t, "", errors.New("timeout"))
	msg := inbound("hello")
	msg.Mentioned = true

	if got := f.loop.Handle(context.Background(), msg); got != OutcomeFallback {
		t.Fatalf("Handle() = %s, want %s", got, OutcomeFallback)
	}
	if out := f.outbound(t); out.Content != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", out.Content)
	}
	if f.loop.Buffer().Len() != 0 {
		t.Fatalf("fallback must not be buffered, got %d turns", f.loop.Buffer().Len())
	}
}

func TestHandleQuotesReferencedMessage(t *testing.T) {
	f := newLoopFixture(t, "AM: indeed", nil)
	f.ref.text = "the original"
	msg := inbound("what about it?")
	msg.Mentioned = true
	msg.ReferenceID = "1699999999.000001"

	f.loop.Handle(context.Background(), msg)
	f.outbound(t)

	if f.ref.gotChannel != testChannel || f.ref.gotID != msg.ReferenceID {
		t.Fatalf("unexpected lookup %s/%s", f.ref.gotChannel, f.ref.gotID)
	}
	want := "Human: (In response to 'the original') what about it?\nAM:"
	if p := f.gen.last(t).Prompt; !strings.HasSuffix(p, want) {
		t.Fatalf("prompt does not end with quoted input: %q", p)
	}
	if turns := f.loop.Buffer().Snapshot(0); turns[0] != "(In response to 'the original') what about it?" {
		t.Fatalf("expected quoted input in buffer, got %q", turns[0])
	}
}

func TestHandleReferenceFailureKeepsInput(t *testing.T) {
	f := newLoopFixture(t, "AM: indeed", nil)
	f.ref.err = errors.New("message_not_found")
	msg := inbound("what about it?")
	msg.Mentioned = true
	msg.ReferenceID = "1699999999.000001"

	if got := f.loop.Handle(context.Background(), msg); got != OutcomeReplied {
		t.Fatalf("Handle() = %s", got)
	}
	f.outbound(t)
	if turns := f.loop.Buffer().Snapshot(0); turns[0] != "what about it?" {
		t.Fatalf("expected unquoted input, got %q", turns[0])
	}
}

func TestHandleInfo(t *testing.T) {
	f := newLoopFixture(t, "unused", nil)
	if got := f.loop.Handle(context.Background(), inbound(" !INFO ")); got != OutcomeInfo {
		t.Fatalf("Handle() = %s, want %s", got, OutcomeInfo)
	}
	out := f.outbound(t)
	if out.Card == nil {
		t.Fatal("expected info card")
	}
	if out.Card.Fields[0].Value != "fake-model" || out.Card.Fields[1].Value != "1h 2m 3s" {
		t.Fatalf("unexpected card fields %+v", out.Card.Fields)
	}
	if f.gen.calls() != 0 || f.loop.Buffer().Len() != 0 {
		t.Fatal("info query must not generate or buffer")
	}

	self := inbound("!info")
	self.FromSelf = true
	foreign := inbound("!info")
	foreign.ChannelID = "C0OTHER"
	for _, msg := range []*bus.InboundMessage{self, foreign} {
		if got := f.loop.Handle(context.Background(), msg); got != OutcomeSkipped {
			t.Fatalf("Handle() = %s, want %s", got, OutcomeSkipped)
		}
	}
}

func TestBufferHoldsOnlyRecentExchanges(t *testing.T) {
	f := newLoopFixture(t, "AM: reply", nil)
	for i := 0; i < 7; i++ {
		msg := inbound("message")
		msg.Mentioned = true
		f.loop.Handle(context.Background(), msg)
		f.outbound(t)
	}
	if n := f.loop.Buffer().Len(); n != session.DefaultCapacity {
		t.Fatalf("expected %d turns, got %d", session.DefaultCapacity, n)
	}
	// The last call saw a full prompt window plus the new input.
	if p := f.gen.last(t).Prompt; strings.Count(p, "Human: ") != HistoryWindow/2+1 {
		t.Fatalf("unexpected prompt window %q", p)
	}
}

func TestProcessDirect(t *testing.T) {
	f := newLoopFixture(t, "AM: direct answer", nil)
	reply, err := f.loop.ProcessDirect(context.Background(), "question")
	if err != nil {
		t.Fatalf("ProcessDirect() error: %v", err)
	}
	if reply != "direct answer" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if f.loop.Buffer().Len() != 2 {
		t.Fatalf("expected exchange to be buffered")
	}

	failing := newLoopFixture(t, "", errors.New("boom"))
	reply, err = failing.loop.ProcessDirect(context.Background(), "question")
	if err == nil || reply != FallbackReply {
		t.Fatalf("expected fallback with error, got %q, %v", reply, err)
	}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	f := newLoopFixture(t, "AM: from the loop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	msg := inbound("hey")
	msg.Mentioned = true
	f.bus.PublishInbound(msg)

	if out := f.outbound(t); out.Content != "from the loop" {
		t.Fatalf("unexpected reply %q", out.Content)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if f.loop.Running() {
		t.Fatal("loop still reports running")
	}
}
