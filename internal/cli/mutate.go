package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/client"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// session charge un post dans un état local et prépare l'Engine.
func session(ctx context.Context, opts *RootOptions, postID string) (*client.FeedState, *client.Engine, error) {
	api := opts.api()
	post, err := api.GetPost(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("load post: %w", err)
	}
	state := client.NewFeedState()
	state.Reset([]domain.AggregatedPost{*post})
	return state, client.NewEngine(state, api, opts.identity(), client.WithLikeErrors()), nil
}

func report(cmd *cobra.Command, opts *RootOptions, state *client.FeedState, postID string, out client.Outcome) error {
	if out.Err != nil {
		return fmt.Errorf("%s: %w", out.Status, out.Err)
	}
	post, _ := state.Post(postID)
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"status":           out.Status.String(),
			"like_count":       post.LikeCount,
			"comment_count":    post.CommentCount,
			"viewer_has_liked": post.ViewerHasLiked,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d likes, %d comments\n", out.Status, post.LikeCount, post.CommentCount)
	return nil
}

func NewLikeCommand(opts *RootOptions, like bool) *cobra.Command {
	use, short := "like <post-id>", "Like a post"
	if !like {
		use, short = "unlike <post-id>", "Remove your like from a post"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			state, engine, err := session(ctx, opts, args[0])
			if err != nil {
				return err
			}
			var out client.Outcome
			if like {
				out = engine.Like(ctx, args[0])
			} else {
				out = engine.Unlike(ctx, args[0])
			}
			return report(cmd, opts, state, args[0], out)
		},
	}
}

func NewCommentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text...>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			state, engine, err := session(ctx, opts, args[0])
			if err != nil {
				return err
			}
			out := engine.AddComment(ctx, args[0], strings.Join(args[1:], " "))
			if err := report(cmd, opts, state, args[0], out); err != nil {
				return err
			}
			if out.Comment != nil && opts.Format == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "comment id: %s\n", out.Comment.ID)
			}
			return nil
		},
	}
}

func NewUncommentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uncomment <post-id> <comment-id>",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			state, engine, err := session(ctx, opts, args[0])
			if err != nil {
				return err
			}
			return report(cmd, opts, state, args[0], engine.RemoveComment(ctx, args[0], args[1]))
		},
	}
}

func NewFollowCommand(opts *RootOptions, follow bool) *cobra.Command {
	use, short := "follow <user-id>", "Follow a user"
	if !follow {
		use, short = "unfollow <user-id>", "Stop following a user"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.api()
			var err error
			if follow {
				err = api.Follow(contextOf(cmd), args[0])
			} else {
				err = api.Unfollow(contextOf(cmd), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", cmd.Name(), args[0])
			return nil
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
