package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/api"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPosts(w io.Writer, format string, posts []domain.AggregatedPost) error {
	if format == "json" {
		out := make([]api.Post, len(posts))
		for i := range posts {
			out[i] = api.FromPost(&posts[i])
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tLIKES\tCOMMENTS\tLIKED\tCAPTION")
	for _, p := range posts {
		caption := ""
		if p.Caption != nil {
			caption = truncate(*p.Caption, 40)
		}
		liked := ""
		if p.ViewerHasLiked {
			liked = "♥"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", p.ID, p.AuthorName, p.LikeCount, p.CommentCount, liked, caption)
		for _, c := range p.CommentPreview {
			fmt.Fprintf(tw, "\t  └ %s: %s\t\t\t\t\n", c.AuthorName, truncate(c.Content, 50))
		}
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
