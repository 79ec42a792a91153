package scraper

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// junkTags never carry article text.
var junkTags = []string{
	"script", "style", "nav", "header", "footer", "aside",
	"noscript", "iframe", "svg", "form",
}

// contentSelectors are tried in order; the first region with substantial
// text wins. Academic containers come before generic ones.
var contentSelectors = []string{
	".ltx_document", ".paper-content", ".full-text", ".article-text",
	"article", "main",
	".content", ".post-content", ".entry-content", ".article-body",
	".story-body", ".text-content", ".main-text",
	"#content", "#main-content", ".main-content", ".container",
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	boilerplateRe = regexp.MustCompile(`(?i)(cookies?|privacy policy|terms of service|subscribe|newsletter)[^.]*`)
	hyphenationRe = regexp.MustCompile(`(\w)-\s*\n(\w)`)
)

// prune removes comments and junk elements from the tree rooted at n.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && isOneOf(c.Data, junkTags...):
			n.RemoveChild(c)
		default:
			prune(c)
		}
		c = next
	}
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}

// collapseSpace is all the cleanup readability output needs.
func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// cleanText collapses whitespace and strips cookie/newsletter boilerplate.
func cleanText(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = boilerplateRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// cleanDocumentPage repairs words split across lines and normalises spacing.
func cleanDocumentPage(s string) string {
	s = hyphenationRe.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
