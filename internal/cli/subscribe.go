package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/klaviyo"
	"github.com/restock-alert/restock-alert/internal/page"
	"github.com/restock-alert/restock-alert/internal/store"
	"github.com/restock-alert/restock-alert/internal/subcache"
	"github.com/restock-alert/restock-alert/internal/widget"
)

func init() {
	rootCmd.AddCommand(newSubscribeCmd())
}

type subscribeOptions struct {
	widgetID  string
	relayURL  string
	beaconURL string
	timeout   time.Duration
}

func newSubscribeCmd() *cobra.Command {
	var opts subscribeOptions

	cmd := &cobra.Command{
		Use:   "subscribe <page.html>",
		Short: "Sign up for a restock alert from the terminal",
		Long: `Bind the back-in-stock widget found in a saved storefront page and walk
through it in the terminal: open the form, enter a mobile number, and submit.

Sign-ups go straight to Klaviyo with the page's public API key, or through a
relay server with --relay. Recent sign-ups are remembered in the local
database and not sent again for 24 hours.

Examples:
  restock subscribe product.html
  restock subscribe product.html --widget bis-main --relay http://localhost:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPage(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withStore(func(s store.Store) error {
				return runSubscribe(cmd.Context(), cmd.OutOrStdout(), p, s, opts, promptUI{})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.widgetID, "widget", "w", "", "widget to use when the page has several (see 'restock widgets')")
	cmd.Flags().StringVar(&opts.relayURL, "relay", "", "relay server URL to submit through")
	cmd.Flags().StringVar(&opts.beaconURL, "beacon", "", "server URL to send analytics beacons to")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", widget.DefaultSubmitTimeout, "submission timeout")

	return cmd
}

func runSubscribe(ctx context.Context, out io.Writer, p *page.Page, s store.Store, opts subscribeOptions, in prompter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(p.Instances) == 0 {
		return fmt.Errorf("no widgets found on page")
	}

	inst, err := pickInstance(p.Instances, opts.widgetID, in)
	if err != nil {
		return err
	}

	emitter := analytics.NewEmitter(logger, analytics.LogSink(logger))
	if opts.beaconURL != "" {
		beacon := analytics.NewBeaconSink(opts.beaconURL, logger)
		emitter.Register(beacon)
		defer beacon.Flush()
	}

	mgr := widget.NewManager(widget.ManagerDeps{
		Config:        merchantResolver(p),
		Cache:         subcache.New(ctx, s, subcache.WithLogger(logger)),
		Emitter:       emitter,
		NewSubscriber: subscriberFactory(opts.relayURL),
		Logger:        logger,
		SubmitTimeout: opts.timeout,
	})
	defer mgr.Stop()

	view := NewTerminalView(out)
	ctrl, _ := mgr.BindIfUnbound(widget.Marker{Instance: inst, View: view})
	if ctrl == nil {
		return fmt.Errorf("back-in-stock is disabled for this store")
	}

	title := inst.ProductTitle
	if title == "" {
		title = "product " + inst.ProductID
	}
	fmt.Fprintf(out, "%s (variant %s)\n", title, inst.VariantID)

	return runTerminalWidget(ctrl, view, in)
}

// subscriberFactory picks the relay when one is given, else Klaviyo directly.
func subscriberFactory(relayURL string) func(config.MerchantConfig) widget.Subscriber {
	return func(cfg config.MerchantConfig) widget.Subscriber {
		if relayURL != "" {
			return klaviyo.NewRelayClient(relayURL)
		}
		return klaviyo.NewClient(cfg.PublicAPIKey)
	}
}

func pickInstance(instances []widget.Instance, id string, in prompter) (widget.Instance, error) {
	if id != "" {
		for _, inst := range instances {
			if inst.Key() == id {
				return inst, nil
			}
		}
		return widget.Instance{}, fmt.Errorf("widget %q not found on page", id)
	}
	if len(instances) == 1 {
		return instances[0], nil
	}

	items := make([]string, len(instances))
	for i, inst := range instances {
		items[i] = fmt.Sprintf("%s (%s, variant %s)", inst.Key(), orDash(inst.Context), orDash(inst.VariantID))
	}
	idx, err := in.Select("Select widget", items)
	if err != nil {
		return widget.Instance{}, err
	}
	return instances[idx], nil
}
