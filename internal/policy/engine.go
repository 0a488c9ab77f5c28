// Package policy decides whether the agent replies to an inbound message.
package policy

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two randomly triggered replies.
const DefaultCooldown = 10 * time.Second

// DefaultRandomChance is the probability of replying to an unmentioned message.
const DefaultRandomChance = 0.1

// Trigger names why a reply was granted.
type Trigger string

const (
	TriggerNone    Trigger = ""
	TriggerMention Trigger = "mention"
	TriggerRandom  Trigger = "random"
)

// Context holds the facts about one inbound message.
type Context struct {
	ChannelID string
	FromSelf  bool
	Mentioned bool
	Now       time.Time
	TraceID   string
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Respond bool
	Trigger Trigger
	Reason  string
	TraceID string
}

// Engine evaluates whether a reply should be generated.
type Engine interface {
	Evaluate(ctx Context) Decision
}

// ResponseEngine implements the mention / random-chance policy.
// The cooldown only gates random replies; mentions never touch it.
type ResponseEngine struct {
	// ChannelID is the only channel the agent answers in.
	ChannelID string
	// Chance is the probability of replying to an unmentioned message.
	Chance float64
	// Cooldown is the minimum gap between random replies.
	Cooldown time.Duration
	// Rand returns a uniform value in [0,1). Defaults to math/rand/v2.
	Rand func() float64

	mu         sync.Mutex
	lastRandom time.Time
}

// NewResponseEngine creates a policy engine for the given channel.
func NewResponseEngine(channelID string, chance float64) *ResponseEngine {
	return &ResponseEngine{
		ChannelID: channelID,
		Chance:    chance,
		Cooldown:  DefaultCooldown,
		Rand:      rand.Float64,
	}
}

// Evaluate applies the rules in order: channel and self filter, mention,
// random chance with cooldown.
func (e *ResponseEngine) Evaluate(ctx Context) Decision {
	d := Decision{TraceID: ctx.TraceID}

	if ctx.ChannelID != e.ChannelID {
		d.Reason = fmt.Sprintf("foreign_channel: %s", ctx.ChannelID)
		return d
	}
	if ctx.FromSelf {
		d.Reason = "own_message"
		return d
	}
	if ctx.Mentioned {
		d.Respond = true
		d.Trigger = TriggerMention
		d.Reason = "mentioned"
		return d
	}

	draw := e.draw()
	if draw >= e.Chance {
		d.Reason = fmt.Sprintf("random_draw_%.3f_above_%.3f", draw, e.Chance)
		return d
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if elapsed := ctx.Now.Sub(e.lastRandom); !e.lastRandom.IsZero() && elapsed <= e.cooldown() {
		d.Reason = fmt.Sprintf("cooldown_active_%s", elapsed.Round(time.Millisecond))
		return d
	}
	e.lastRandom = ctx.Now
	d.Respond = true
	d.Trigger = TriggerRandom
	d.Reason = fmt.Sprintf("random_draw_%.3f", draw)
	return d
}

// LastRandomResponse returns the time of the last randomly triggered reply.
func (e *ResponseEngine) LastRandomResponse() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRandom
}

func (e *ResponseEngine) draw() float64 {
	if e.Rand == nil {
		return rand.Float64()
	}
	return e.Rand()
}

func (e *ResponseEngine) cooldown() time.Duration {
	if e.Cooldown <= 0 {
		return DefaultCooldown
	}
	return e.Cooldown
}
