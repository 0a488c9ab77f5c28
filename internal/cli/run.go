package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ucai/ucaibot/internal/agent"
	"github.com/ucai/ucaibot/internal/bus"
	"github.com/ucai/ucaibot/internal/channels"
	"github.com/ucai/ucaibot/internal/config"
	"github.com/ucai/ucaibot/internal/policy"
	"github.com/ucai/ucaibot/internal/provider"
	"github.com/ucai/ucaibot/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Slack and start replying",
	RunE:  runBot,
}

var runSignalNotify = signal.Notify
var runSignalStop = signal.Stop

// bot holds the wired runtime components.
type bot struct {
	bus   *bus.MessageBus
	slack *channels.SlackChannel
	loop  *agent.Loop
}

func newBot(cfg *config.Config, gen provider.Generator, startTime time.Time) *bot {
	msgBus := bus.NewMessageBus()
	slackCh := channels.NewSlackChannel(cfg.Slack, msgBus, nil)
	loop := agent.NewLoop(agent.LoopOptions{
		Bus:        msgBus,
		Responder:  newResponder(cfg, gen),
		Policy:     policy.NewResponseEngine(cfg.Slack.ChannelID, cfg.Agent.RandomResponseChance),
		Buffer:     session.NewBuffer(session.DefaultCapacity),
		Referencer: slackCh,
		ChannelID:  cfg.Slack.ChannelID,
		StartTime:  startTime,
	})
	return &bot{bus: msgBus, slack: slackCh, loop: loop}
}

// run blocks until ctx is cancelled or a component fails.
func (b *bot) run(ctx context.Context) error {
	if err := b.slack.Start(ctx); err != nil {
		return fmt.Errorf("start slack: %w", err)
	}
	defer b.slack.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := b.bus.DispatchOutbound(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return b.loop.Run(gctx)
	})
	return g.Wait()
}

func runBot(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(config.ModeRun); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cmd.ErrOrStderr(), cfg.Log.Debug)

	gen, err := provider.Resolve(cfg)
	if err != nil {
		return err
	}
	if c, ok := gen.(io.Closer); ok {
		defer c.Close()
	}
	printHeader(cmd.OutOrStdout(), "UC-AI Bot")
	fmt.Fprintf(cmd.OutOrStdout(), "Model: %s (%s)\nChannel: %s\n", cfg.Model.Name, gen.Name(), cfg.Slack.ChannelID)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	runSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer runSignalStop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return newBot(cfg, gen, start).run(ctx)
}
