package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ucai/ucaibot/internal/bus"
)

const (
	infoCommand   = "!info"
	infoCardTitle = "UC-AIv2 Info"
	infoCardColor = "#00ff00"
)

// IsInfoQuery reports whether content asks for the bot's status.
func IsInfoQuery(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), infoCommand)
}

// FormatUptime renders d as "{h}h {m}m {s}s", truncated to whole seconds.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// InfoCard builds the status card with the active model and uptime.
func InfoCard(model string, uptime time.Duration) *bus.Card {
	return &bus.Card{
		Title: infoCardTitle,
		Color: infoCardColor,
		Fields: []bus.CardField{
			{Name: "Model", Value: model, Inline: true},
			{Name: "Uptime", Value: FormatUptime(uptime)},
		},
	}
}

// CardText is the plain-text rendering of a card, used as message fallback text.
func CardText(c *bus.Card) string {
	parts := make([]string, 0, len(c.Fields)+1)
	parts = append(parts, c.Title)
	for _, f := range c.Fields {
		parts = append(parts, f.Name+": "+f.Value)
	}
	return strings.Join(parts, "\n")
}
