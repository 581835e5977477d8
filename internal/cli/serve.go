package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/channels"
	"github.com/parley-ai/parley/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversation service (channels, relay, analysis)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	printHeader("Parley service")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.events.Dispatch(ctx)
	if a.cfg.Analysis.Enabled {
		go a.analysis.Run(ctx)
	}

	rly := relay.New(a.cfg.Relay, a.events, a.pipeline)
	if err := rly.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	defer rly.Stop()

	if a.cfg.Channels.Slack.Enabled {
		slackCh := channels.NewSlackChannel(a.cfg.Channels.Slack, a.pipeline, a.events)
		go func() {
			if err := slackCh.Start(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "slack channel error: %v\n", err)
			}
		}()
		defer slackCh.Stop()
	}

	fmt.Printf("serving %d topics, %d identities\n", len(a.registry.Topics()), len(a.dir.List()))
	<-ctx.Done()
	fmt.Println("\nshutting down")
	return nil
}
