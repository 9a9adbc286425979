// fetch-listings runs one !live aggregation against the stock sources and
// prints every reply, plain and markup, without connecting to chat.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/john/commander/internal/aggregator"
	"github.com/john/commander/internal/format"
	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/source"
)

func main() {
	var (
		layout   string
		maxItems int
		timeout  time.Duration
		markup   bool
		only     []string
	)

	cmd := &cobra.Command{
		Use:   "fetch-listings",
		Short: "Fetch live stream listings and print the chat replies",
		Example: "  fetch-listings\n" +
			"  fetch-listings --layout combined --markup\n" +
			"  fetch-listings --source hitbox --timeout 3s",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !format.Layout(layout).Valid() {
				return fmt.Errorf("unknown layout %q", layout)
			}
			logging.Init(logging.Config{Level: "warn", Pretty: true})

			sources, err := selectSources(only, timeout)
			if err != nil {
				return err
			}

			results := aggregator.New(source.NewClient(), sources).Aggregate(cmd.Context())
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", r.Source.ID, r.Err)
				}
			}

			f := format.New(format.Config{Layout: format.Layout(layout), MaxItems: maxItems})
			for i, m := range f.Live(results) {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", i+1, m.Plain)
				if markup {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", m.Markup)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&layout, "layout", string(format.LayoutPerItem), "reply layout: per-item or combined")
	cmd.Flags().IntVar(&maxItems, "max", format.DefaultMaxItems, "streams listed per source")
	cmd.Flags().DurationVar(&timeout, "timeout", source.DefaultTimeout, "per-source fetch timeout")
	cmd.Flags().BoolVar(&markup, "markup", false, "also print the markup body")
	cmd.Flags().StringSliceVar(&only, "source", nil, "limit to these source ids")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func selectSources(ids []string, timeout time.Duration) ([]source.Config, error) {
	all := source.Defaults()
	for i := range all {
		all[i].Timeout = timeout
	}
	if len(ids) == 0 {
		return all, nil
	}

	byID := make(map[string]source.Config, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	out := make([]source.Config, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		out = append(out, s)
	}
	return out, nil
}
