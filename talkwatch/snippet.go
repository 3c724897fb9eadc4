package talkwatch

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"

	"github.com/jwbth/talkpage/parse"
)

const snippetLimit = 240

var mdConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
})

// snippet renders a comment's nodes back to HTML and converts them to
// markdown for event payloads. Falls back to the extracted plain text
// when conversion fails.
func (w *Watcher) snippet(c *parse.Comment) string {
	var sb strings.Builder
	for _, n := range c.Nodes {
		html.Render(&sb, n)
	}
	md, err := mdConverter().ConvertString(sb.String())
	if err != nil {
		w.logger.Debug("talkwatch: snippet conversion failed",
			"comment", c.ID, "error", err)
		return truncate(collapseSpace(c.Text), snippetLimit)
	}
	return truncate(collapseSpace(md), snippetLimit)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
