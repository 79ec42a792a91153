package entity

import "fmt"

type ActionType string

const (
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionScrollRead ActionType = "scroll_read"
	ActionClosePage  ActionType = "close_page"
	ActionWait       ActionType = "wait"
	ActionGoBack     ActionType = "go_back"
	ActionGoToSearch ActionType = "go_to_search"
	ActionRetry      ActionType = "retry"
)

var ActionTypes = []ActionType{
	ActionClick,
	ActionTypeText,
	ActionScrollRead,
	ActionClosePage,
	ActionWait,
	ActionGoBack,
	ActionGoToSearch,
	ActionRetry,
}

func (t ActionType) Validate() error {
	for _, known := range ActionTypes {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("unknown action type %q", string(t))
}

// NeedsTarget reports whether the action must reference a DomElement.
func (t ActionType) NeedsTarget() bool {
	return t == ActionClick || t == ActionTypeText
}

type Action struct {
	Thought    string      `json:"thought"`
	Type       ActionType  `json:"action_type"`
	Args       string      `json:"args"`
	Element    *DomElement `json:"action_element,omitempty"`
	SnapshotID int         `json:"snapshot_id"`
}

func (a Action) Validate() error {
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if a.Type.NeedsTarget() && a.Element == nil {
		return fmt.Errorf("action %s requires action_element", a.Type)
	}
	return nil
}

func (a Action) String() string {
	if a.Element != nil {
		return fmt.Sprintf("%s %s[%d]", a.Type, a.Element.Type, a.Element.Index)
	}
	return string(a.Type)
}
