package entity

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ReviewYes = "Yes"
	ReviewNo  = "No"
)

type SelfReview struct {
	Answer    string `json:"answer" enum:"Yes,No"`
	Reasoning string `json:"reasoning"`
}

func (r SelfReview) Validate() error {
	return oneOf("answer", r.Answer, ReviewYes, ReviewNo)
}

func (r SelfReview) Sufficient() bool {
	return r.Answer == ReviewYes
}

// NoChange keeps the browser on the current page.
const NoChange = "NO_CHANGE"

type NavigationDecision struct {
	URL string `json:"url" description:"The url to navigate to, or NO_CHANGE"`
}

func (d NavigationDecision) Validate() error {
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("url is empty")
	}
	return nil
}

// Target returns the destination, or false when the page should stay.
// Anything that is not an absolute http(s) URL counts as NO_CHANGE.
func (d NavigationDecision) Target() (string, bool) {
	raw := strings.TrimSpace(d.URL)
	if raw == "" || raw == NoChange {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

type SubtopicList struct {
	Subtopics []string `json:"subtopics" description:"3-6 concise subtopics ordered from general to specific"`
}
