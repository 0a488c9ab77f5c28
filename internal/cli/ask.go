package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ucai/ucaibot/internal/agent"
	"github.com/ucai/ucaibot/internal/config"
	"github.com/ucai/ucaibot/internal/provider"
)

var askMessage string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Generate one reply in the terminal",
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMessage, "message", "m", "", "Message to send to the agent")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askMessage == "" {
		return errors.New("--message is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(config.ModeAsk); err != nil {
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
	loop := agent.NewLoop(agent.LoopOptions{
		Responder: newResponder(cfg, gen),
	})

	reply, err := loop.ProcessDirect(cmd.Context(), askMessage)
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return err
}

func newResponder(cfg *config.Config, gen provider.Generator) *agent.Responder {
	return agent.NewResponder(agent.ResponderOptions{
		Generator:   gen,
		Persona:     cfg.Agent.Prompt,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
}
