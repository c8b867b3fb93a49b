// Package cli implémente feedctl, le client en ligne de commande du feed.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/client"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server string
	Token  string
	Format string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "feedctl",
		Short: "feedctl - drive the interaction service from a terminal",
		Long:  "Browse the feed page by page, like and comment with optimistic updates.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("FEEDCTL_SERVER", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("FEEDCTL_TOKEN"), "bearer token (empty = anonymous)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewLikeCommand(opts, true))
	cmd.AddCommand(NewLikeCommand(opts, false))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewUncommentCommand(opts))
	cmd.AddCommand(NewFollowCommand(opts, true))
	cmd.AddCommand(NewFollowCommand(opts, false))

	return cmd
}

func (o *RootOptions) api(opts ...client.APIOption) *client.APIClient {
	return client.NewAPIClient(o.Server, o.Token, opts...)
}

// identity : le CLI ne décode pas le token, seule sa présence compte ici.
// Le serveur reste seul juge de sa validité.
func (o *RootOptions) identity() client.Identity {
	if o.Token == "" {
		return client.StaticIdentity{}
	}
	return client.StaticIdentity{Viewer: &domain.Viewer{ID: "me"}}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
