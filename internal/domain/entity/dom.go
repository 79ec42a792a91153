package entity

import (
	"fmt"
	"strings"
)

// DocumentSentinel is the element type the annotator reports first when the
// page is a PDF viewer.
const DocumentSentinel = "pdf"

type DomElement struct {
	Index       int     `json:"index"`
	Text        string  `json:"text"`
	Type        string  `json:"type"`
	XPath       string  `json:"xpath"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Description string  `json:"description"`
}

func (e DomElement) IsLink() bool {
	return strings.EqualFold(e.Type, "link")
}

func (e DomElement) Label() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Text
}

// Snapshot is the result of a single sensing pass. Actions planned from it
// carry its ID.
type Snapshot struct {
	ID         int
	URL        string
	Elements   []DomElement
	IsDocument bool
}

func (s Snapshot) Find(index int) (DomElement, bool) {
	for _, el := range s.Elements {
		if el.Index == index {
			return el, true
		}
	}
	return DomElement{}, false
}

// Contains reports whether el (by index and xpath) belongs to this snapshot.
func (s Snapshot) Contains(el DomElement) bool {
	found, ok := s.Find(el.Index)
	return ok && found.XPath == el.XPath
}

func (s Snapshot) Describe(maxElements int) string {
	var sb strings.Builder
	for i, el := range s.Elements {
		if maxElements > 0 && i >= maxElements {
			fmt.Fprintf(&sb, "... %d more elements\n", len(s.Elements)-maxElements)
			break
		}
		fmt.Fprintf(&sb, "[%d] %s %q xpath=%s (%.0f,%.0f) %s\n",
			el.Index, el.Type, truncateText(el.Text, 80), el.XPath, el.X, el.Y, truncateText(el.Description, 80))
	}
	return sb.String()
}

func truncateText(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
