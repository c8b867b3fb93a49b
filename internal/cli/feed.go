package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/client"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

type FeedOptions struct {
	*RootOptions
	Limit int
	Pages int
	Scope string
}

func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the feed, newest first",
		Long: `Load the first page, then keep paging as if the reader scrolled
to the bottom, until --pages pages are loaded or the feed is exhausted.

Example:
  feedctl feed --limit 10 --pages 3
  feedctl feed --scope following --token <jwt>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(contextOf(cmd), opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 20, "posts per page")
	cmd.Flags().IntVarP(&opts.Pages, "pages", "p", 1, "max pages to load (0 = all)")
	cmd.Flags().StringVar(&opts.Scope, "scope", string(domain.ScopeGlobal), "global|following")

	return cmd
}

func runFeed(ctx context.Context, opts *FeedOptions, cmd *cobra.Command) error {
	state := client.NewFeedState()
	pager := client.NewPager(opts.api(client.WithScope(domain.FeedScope(opts.Scope))), state, opts.Limit)

	if _, err := pager.LoadInitial(ctx); err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	for loaded := 1; opts.Pages == 0 || loaded < opts.Pages; loaded++ {
		if !pager.OnVisible(ctx) {
			break
		}
	}

	if err := printPosts(cmd.OutOrStdout(), opts.Format, state.Posts()); err != nil {
		return err
	}
	if opts.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d posts shown, %d total, more: %v\n", state.Len(), pager.Total(), pager.HasMore())
	}
	return nil
}
