package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"research-agent/internal/domain/entity"
)

//go:embed *.txt *.tmpl
var files embed.FS

var templates = template.Must(template.ParseFS(files, "*.tmpl"))

type Name string

const (
	Navigation Name = "navigation"
	Decompose  Name = "decompose"
	Tracker    Name = "tracker"
	Planner    Name = "planner"
	Review     Name = "review"
	Synthesis  Name = "synthesis"
	Compile    Name = "compile"
)

// System returns the fixed system prompt for name.
func System(name Name) (string, error) {
	data, err := files.ReadFile(string(name) + "_system.txt")
	if err != nil {
		return "", fmt.Errorf("system prompt %s: %w", name, err)
	}
	return string(data), nil
}

// User renders the user prompt template for name with data.
func User(name Name, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(name)+"_user.tmpl", data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// Messages builds the system+user pair most call sites send.
func Messages(name Name, data any) ([]entity.Message, error) {
	system, err := System(name)
	if err != nil {
		return nil, err
	}
	user, err := User(name, data)
	if err != nil {
		return nil, err
	}
	return []entity.Message{
		entity.SystemMessage(system),
		entity.UserMessage(user),
	}, nil
}

type NavigationData struct {
	Task       string
	History    []string
	CurrentURL string
}

type DecomposeData struct {
	Goal string
}

type TrackerData struct {
	Subtopics []string
	Status    []string
}

type PlannerData struct {
	Subtopic     string
	ActionsTaken []string
	Elements     string
	VisitedURLs  []string
}

type ReviewData struct {
	Subtopic  string
	Documents []entity.Document
}

type SynthesisData struct {
	Subtopic   string
	Goal       string
	Excerpts   []string
	References []string
}

type CompileData struct {
	Goal        string
	Answers     []entity.SubtopicAnswer
	VisitedURLs []string
}
