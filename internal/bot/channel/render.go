package channel

import (
	"fmt"
	"html"
	"strings"

	"github.com/prasadmotors/dealerbot/internal/bot/engine"
)

// renderResponse turns an engine response into an HTML body with a plain
// text fallback.  Options become a numbered list so users can reply with
// just the number; cards render as bolded listings.
func renderResponse(resp *engine.Response) (htmlBody, plainBody string) {
	var h, p strings.Builder

	h.WriteString(strings.ReplaceAll(html.EscapeString(resp.Message), "\n", "<br>"))
	p.WriteString(resp.Message)

	for _, item := range resp.Items {
		fmt.Fprintf(&h, "<br><br><b>%s</b>", html.EscapeString(item.Title))
		fmt.Fprintf(&p, "\n\n%s", item.Title)
		if item.Subtitle != "" {
			fmt.Fprintf(&h, "<br>%s", html.EscapeString(item.Subtitle))
			fmt.Fprintf(&p, "\n%s", item.Subtitle)
		}
		if item.Detail != "" {
			fmt.Fprintf(&h, "<br><i>%s</i>", html.EscapeString(item.Detail))
			fmt.Fprintf(&p, "\n%s", item.Detail)
		}
	}

	if len(resp.Options) > 0 {
		h.WriteString("<br><ol>")
		p.WriteString("\n")
		for i, opt := range resp.Options {
			fmt.Fprintf(&h, "<li>%s</li>", html.EscapeString(opt))
			fmt.Fprintf(&p, "\n%d. %s", i+1, opt)
		}
		h.WriteString("</ol>")
	}

	return h.String(), p.String()
}
