package mupdf

import (
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pdf-annotator/internal/domain"
)

// glyphWidthFactor estimates the advance of one character from the font
// size. MuPDF's HTML output carries no widths.
const glyphWidthFactor = 0.6

// ParseFragments turns MuPDF's HTML page output into positioned text
// fragments. Each absolutely positioned paragraph becomes one fragment:
//
//	<p style="top:72pt;left:72pt;line-height:12pt">
//	  <span style="font-family:Helvetica,serif;font-size:12pt">Hello</span>
//	</p>
func ParseFragments(markup string) ([]domain.TextFragment, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	frags := make([]domain.TextFragment, 0)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			if f, ok := paragraphFragment(n); ok {
				frags = append(frags, f)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return frags, nil
}

func paragraphFragment(p *html.Node) (domain.TextFragment, bool) {
	style := parseStyle(attr(p, "style"))
	top, okTop := points(style["top"])
	left, okLeft := points(style["left"])
	if !okTop || !okLeft {
		return domain.TextFragment{}, false
	}

	var text strings.Builder
	var fontSize float64
	var family string
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Span && fontSize == 0 {
				s := parseStyle(attr(n, "style"))
				fontSize, _ = points(s["font-size"])
				family = firstFamily(s["font-family"])
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(p)

	content := strings.TrimSpace(text.String())
	if content == "" {
		return domain.TextFragment{}, false
	}
	lineHeight, ok := points(style["line-height"])
	if fontSize == 0 {
		fontSize = lineHeight
	}
	if !ok || lineHeight == 0 {
		lineHeight = fontSize
	}

	return domain.TextFragment{
		Text:       content,
		X:          left,
		Y:          top,
		Width:      float64(uniseg.GraphemeClusterCount(content)) * fontSize * glyphWidthFactor,
		Height:     lineHeight,
		FontSize:   fontSize,
		FontFamily: family,
	}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func points(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func firstFamily(v string) string {
	name, _, _ := strings.Cut(v, ",")
	return strings.Trim(strings.TrimSpace(name), `"'`)
}
