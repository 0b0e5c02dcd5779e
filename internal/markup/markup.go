// Package markup turns a post body into safe HTML.
package markup

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// goldmark escapes the angle brackets before we get to see them
var quoteLinkRegex = regexp.MustCompile(`&gt;&gt;(\d+)`)

type Formatter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Formatter {
	p := parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(NewGreentextParser(), 800),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
		parser.WithInlineParsers(
			util.Prioritized(parser.NewCodeSpanParser(), 100),
			util.Prioritized(parser.NewEmphasisParser(), 500),
		),
	)

	md := goldmark.New(
		goldmark.WithParser(p),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			renderer.WithNodeRenderers(util.Prioritized(NewGreentextHTMLRenderer(), 500)),
		),
		goldmark.WithExtensions(extension.Strikethrough),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^(quote-link|greentext)$`)).OnElements("a", "span")
	policy.RequireNoFollowOnLinks(false)
	policy.AllowRelativeURLs(true)

	return &Formatter{md: md, policy: policy}
}

// Format renders text and links >>N quotes to the post anchor on the page.
func (f *Formatter) Format(text string) template.HTML {
	var buf bytes.Buffer
	rendered := text
	if err := f.md.Convert([]byte(text), &buf); err == nil {
		rendered = strings.TrimSpace(buf.String())
	} else {
		rendered = template.HTMLEscapeString(text)
	}

	rendered = quoteLinkRegex.ReplaceAllStringFunc(rendered, func(match string) string {
		id := quoteLinkRegex.FindStringSubmatch(match)[1]
		return fmt.Sprintf(`<a class="quote-link" href="#p%s">&gt;&gt;%s</a>`, id, id)
	})

	return template.HTML(f.policy.Sanitize(rendered))
}

// Preview cuts text to at most max characters, marking the cut with "...".
func Preview(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	return string([]rune(text)[:max]) + "...", true
}
