package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/odm/internal/config"
	"github.com/alfredjeanlab/odm/internal/events"
	"github.com/alfredjeanlab/odm/internal/hooks"
	"github.com/alfredjeanlab/odm/internal/ui"
)

var (
	watchNATSURL string
	watchTopic   string
	watchExec    string
	watchTimeout time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print lifecycle events from NATS, or run a command for each",
	Long: `Print lifecycle events from NATS, or run a command for each.

With --exec the command runs through sh once per event with ODM_TOPIC,
ODM_EVENT, ODM_SCHEMA, ODM_COLLECTION, ODM_KEY and ODM_CREATED set.`,
	GroupID:     "data",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		url := watchNATSURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			url = cfg.NATSURL
		}
		if url == "" {
			return errors.New("no NATS server given (use --nats-url or ODM_NATS_URL)")
		}
		sub, err := events.NewNATSSubscriber(url)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watch(ctx, cmd.OutOrStdout(), sub)
	},
}

func watch(ctx context.Context, w io.Writer, sub events.Subscriber) error {
	if watchExec != "" {
		h := hooks.NewHandler(hooks.Hook{Command: watchExec, Timeout: watchTimeout}, nil, func(r hooks.Report) {
			status := ui.RenderPass("ok")
			if r.Result.Err != nil {
				status = ui.RenderFail(r.Result.Err.Error())
			}
			fmt.Fprintf(w, "%s %s %s\n", ui.RenderAccent(r.Topic), ui.RenderMuted(r.Env["ODM_KEY"]), status)
			if r.Result.Output != "" {
				fmt.Fprintln(w, r.Result.Output)
			}
		})
		return h.Run(ctx, sub, watchTopic)
	}

	ch, cancel, err := sub.Subscribe(watchTopic)
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintln(w, string(msg.Data))
				continue
			}
			fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(msg.Topic), msg.Data)
		}
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchNATSURL, "nats-url", "", "NATS server URL (default $ODM_NATS_URL)")
	watchCmd.Flags().StringVar(&watchTopic, "topic", events.TopicAll, "topic pattern to subscribe to")
	watchCmd.Flags().StringVar(&watchExec, "exec", "", "shell command to run for each event")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", hooks.DefaultTimeout, "timeout for each --exec run")

}
