package entity

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

const (
	CaptureForbidden = "Forbidden"
	CaptureNoData    = "No data found"
)

// Document is one retrievable chunk together with where it came from.
type Document struct {
	Content string
	Source  string
	Title   string
	Domain  string
	Score   float32
}

// Reference formats the document as a citation line.
func (d Document) Reference() string {
	return d.Title + ". Retrieved from " + d.Source + " (" + d.Domain + ")"
}

// SourceMetadata derives title and domain from a page URL. The title is the
// last path segment with dashes turned into spaces and the extension dropped.
func SourceMetadata(rawURL string) (title, domain string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "Untitled", "Unknown Source"
	}
	domain = u.Host
	if domain == "" {
		domain = "Unknown Source"
	}

	segment := path.Base(strings.TrimSuffix(u.Path, "/"))
	if segment == "." || segment == "/" || segment == "" {
		segment = u.Host
	}
	segment = strings.TrimSuffix(segment, ".html")
	segment = strings.TrimSuffix(segment, ".htm")
	segment = strings.TrimSuffix(segment, ".pdf")
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)

	title = titleCase(segment)
	if title == "" {
		title = "Untitled"
	}
	return title, domain
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
