package format

import (
	"html"
	"strings"

	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/source"
)

// pair writes the plain and markup bodies of one message side by side so the
// two can only differ in decoration. Text never carries control characters;
// line breaks come only from lineBreak.
type pair struct {
	plain  strings.Builder
	markup strings.Builder
}

func (p *pair) text(s string) *pair {
	s = source.StripControl(s)
	p.plain.WriteString(s)
	p.markup.WriteString(html.EscapeString(s))
	return p
}

func (p *pair) bold(s string) *pair {
	s = source.StripControl(s)
	p.plain.WriteString(s)
	p.markup.WriteString("<strong>")
	p.markup.WriteString(html.EscapeString(s))
	p.markup.WriteString("</strong>")
	return p
}

// link renders inner as an anchor to href. The plain body shows the target in
// parentheses after the text unless the text already is the target.
func (p *pair) link(href string, inner func(*pair)) *pair {
	href = source.StripControl(href)
	start := p.plain.Len()
	p.markup.WriteString(`<a href="`)
	p.markup.WriteString(html.EscapeString(href))
	p.markup.WriteString(`">`)
	inner(p)
	p.markup.WriteString("</a>")
	if href != "" && p.plain.String()[start:] != href {
		p.plain.WriteString(" (")
		p.plain.WriteString(href)
		p.plain.WriteString(")")
	}
	return p
}

func (p *pair) linkText(href, s string) *pair {
	return p.link(href, func(p *pair) { p.text(s) })
}

func (p *pair) lineBreak() *pair {
	p.plain.WriteString("\n")
	p.markup.WriteString("<br/>")
	return p
}

func (p *pair) message() message.Outgoing {
	return message.Outgoing{Plain: p.plain.String(), Markup: p.markup.String()}
}
