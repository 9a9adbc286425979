package format

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PlainText renders a markup body the way the plain body is written: tags are
// dropped, entities decoded, <br> becomes a newline and an anchor is followed
// by its target in parentheses when the anchor text differs from it.
func PlainText(markup string) (string, error) {
	var (
		out     strings.Builder
		anchors []anchor
	)

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return out.String(), nil
		case html.TextToken:
			out.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "br":
				out.WriteString("\n")
			case "a":
				a := anchor{start: out.Len()}
				for _, attr := range tok.Attr {
					if attr.Key == "href" {
						a.href = attr.Val
					}
				}
				anchors = append(anchors, a)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "a" || len(anchors) == 0 {
				continue
			}
			a := anchors[len(anchors)-1]
			anchors = anchors[:len(anchors)-1]
			if a.href != "" && out.String()[a.start:] != a.href {
				out.WriteString(" (" + a.href + ")")
			}
		}
	}
}

type anchor struct {
	start int
	href  string
}
