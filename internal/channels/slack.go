package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/ucai/ucaibot/internal/bus"
	"github.com/ucai/ucaibot/internal/config"
)

// ErrMessageNotFound is returned by FetchMessage when no message has the given ts.
var ErrMessageNotFound = errors.New("slack message not found")

// acceptedSubtypes are the message subtypes that carry user text.
var acceptedSubtypes = map[string]bool{
	"":                 true,
	"thread_broadcast": true,
	"file_share":       true,
}

// SlackChannel connects to Slack over Socket Mode and posts replies
// through the Web API.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	api    *slack.Client

	botUserID string
	botID     string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSlackChannel creates the Slack channel. httpClient may be nil.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus, httpClient *http.Client) *SlackChannel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = slack.APIURL
	}
	base = strings.TrimRight(base, "/") + "/"

	opts := []slack.Option{
		slack.OptionHTTPClient(httpClient),
		slack.OptionAPIURL(base),
	}
	if tok := strings.TrimSpace(cfg.AppToken); tok != "" {
		opts = append(opts, slack.OptionAppLevelToken(tok))
	}
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		api:         slack.New(strings.TrimSpace(cfg.BotToken), opts...),
		botUserID:   strings.TrimSpace(cfg.BotUserID),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// BotUserID returns the resolved bot user id.
func (c *SlackChannel) BotUserID() string { return c.botUserID }

// Start resolves the bot identity, subscribes to outbound messages and runs
// the Socket Mode client in the background until ctx is cancelled or Stop
// is called.
func (c *SlackChannel) Start(ctx context.Context) error {
	if err := c.resolveIdentity(ctx); err != nil {
		return err
	}
	c.subscribe(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	client := socketmode.New(c.api)
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("Slack socket mode stopped", "error", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.pump(runCtx, client)
	}()
	slog.Info("Slack channel started", "bot_user_id", c.botUserID, "channel_id", c.config.ChannelID)
	return nil
}

// Stop cancels the Socket Mode client and waits for its goroutines.
func (c *SlackChannel) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *SlackChannel) resolveIdentity(ctx context.Context) error {
	if c.botUserID != "" {
		return nil
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth.test: %w", err)
	}
	c.botUserID = resp.UserID
	c.botID = resp.BotID
	return nil
}

func (c *SlackChannel) subscribe(ctx context.Context) {
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("Failed to send Slack message", "trace_id", msg.TraceID, "channel_id", msg.ChannelID, "error", err)
		}
	})
}

func (c *SlackChannel) pump(ctx context.Context, client *socketmode.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				slog.Debug("Connecting to Slack")
			case socketmode.EventTypeConnected:
				slog.Info("Connected to Slack")
			case socketmode.EventTypeConnectionError:
				slog.Warn("Slack connection error", "data", evt.Data)
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					client.Ack(*evt.Request)
				}
				if ev, ok := evt.Data.(slackevents.EventsAPIEvent); ok {
					c.HandleEventsAPI(ev)
				}
			default:
				if evt.Request != nil {
					client.Ack(*evt.Request)
				}
			}
		}
	}
}

// HandleEventsAPI publishes inbound messages for message callback events.
// It reports whether a message was published.
func (c *SlackChannel) HandleEventsAPI(ev slackevents.EventsAPIEvent) bool {
	if ev.Type != slackevents.CallbackEvent {
		return false
	}
	in, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || in == nil {
		return false
	}
	msg, ok := InboundFromEvent(in, c.botUserID, c.botID)
	if !ok {
		slog.Debug("Ignoring Slack message", "subtype", in.SubType, "channel_id", in.Channel)
		return false
	}
	c.Bus.PublishInbound(msg)
	return true
}

// InboundFromEvent translates a Slack message event. It returns false for
// subtypes that carry no user text (edits, deletions, joins).
func InboundFromEvent(ev *slackevents.MessageEvent, botUserID, botID string) (*bus.InboundMessage, bool) {
	if !acceptedSubtypes[ev.SubType] {
		return nil, false
	}

	text := ev.Text
	mentioned := false
	if botUserID != "" {
		token := "<@" + botUserID + ">"
		mentioned = strings.Contains(text, token)
		text = strings.ReplaceAll(text, token, "")
	}

	msg := &bus.InboundMessage{
		Channel:   "slack",
		ChannelID: ev.Channel,
		SenderID:  ev.User,
		MessageID: ev.TimeStamp,
		ThreadID:  ev.ThreadTimeStamp,
		Content:   strings.TrimSpace(text),
		FromSelf:  (botUserID != "" && ev.User == botUserID) || (botID != "" && ev.BotID == botID),
		Mentioned: mentioned,
		Timestamp: parseTimestamp(ev.TimeStamp),
	}
	if ev.ThreadTimeStamp != "" && ev.ThreadTimeStamp != ev.TimeStamp {
		msg.ReferenceID = ev.ThreadTimeStamp
	}
	return msg, true
}

// Send posts the message, as an attachment when it carries a card.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	channelID := strings.TrimSpace(msg.ChannelID)
	if channelID == "" {
		channelID = c.config.ChannelID
	}

	var opts []slack.MsgOption
	if msg.Card != nil {
		opts = append(opts, slack.MsgOptionAttachments(cardAttachment(msg.Card, msg.Content)))
	} else {
		opts = append(opts, slack.MsgOptionText(msg.Content, false))
	}
	// Replies to top-level messages start a thread under them.
	ts := strings.TrimSpace(msg.ThreadID)
	if ts == "" {
		ts = strings.TrimSpace(msg.ReplyTo)
	}
	if ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	slog.Debug("Sent Slack message", "trace_id", msg.TraceID, "channel_id", channelID, "ts", ts)
	return nil
}

// FetchMessage returns the text of the message with the given ts.
func (c *SlackChannel) FetchMessage(ctx context.Context, channelID, ts string) (string, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Latest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return "", fmt.Errorf("conversations.history: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].Timestamp != ts {
		return "", fmt.Errorf("%w: %s", ErrMessageNotFound, ts)
	}
	return resp.Messages[0].Text, nil
}

func cardAttachment(card *bus.Card, fallback string) slack.Attachment {
	fields := make([]slack.AttachmentField, 0, len(card.Fields))
	for _, f := range card.Fields {
		fields = append(fields, slack.AttachmentField{Title: f.Name, Value: f.Value, Short: f.Inline})
	}
	return slack.Attachment{
		Fallback: fallback,
		Title:    card.Title,
		Color:    card.Color,
		Fields:   fields,
	}
}

// parseTimestamp converts a Slack ts ("1700000000.000100") to a time.
// Unparsable values yield the zero time, which the bus replaces with now.
func parseTimestamp(ts string) time.Time {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var usec int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		usec, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(s, usec*int64(time.Microsecond))
}
