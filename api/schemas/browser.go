package schemas

import (
	"encoding/json"
	"fmt"
)

// -- Browser Interaction Schemas --

// ActionKind is the interaction performed on a resolved element.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionType     ActionKind = "type"
	ActionClear    ActionKind = "clear"
	ActionSelect   ActionKind = "select"
	ActionHover    ActionKind = "hover"
	ActionReadText ActionKind = "read_text"
)

// SelectBy chooses how a select action matches its option.
type SelectBy string

const (
	SelectByVisibleText SelectBy = "text"
	SelectByOptionValue SelectBy = "value"
)

// Action describes one interaction. Text is the input for type, and the
// option text or value for select.
type Action struct {
	Kind       ActionKind `json:"kind"`
	Text       string     `json:"text,omitempty"`
	ClearFirst bool       `json:"clear_first,omitempty"`
	SelectBy   SelectBy   `json:"select_by,omitempty"`
}

func Click() Action    { return Action{Kind: ActionClick} }
func Clear() Action    { return Action{Kind: ActionClear} }
func Hover() Action    { return Action{Kind: ActionHover} }
func ReadText() Action { return Action{Kind: ActionReadText} }

func TypeText(text string, clearFirst bool) Action {
	return Action{Kind: ActionType, Text: text, ClearFirst: clearFirst}
}

func SelectByText(text string) Action {
	return Action{Kind: ActionSelect, Text: text, SelectBy: SelectByVisibleText}
}

func SelectByValue(value string) Action {
	return Action{Kind: ActionSelect, Text: value, SelectBy: SelectByOptionValue}
}

// Validate rejects actions the executor cannot run.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionClick, ActionType, ActionClear, ActionHover, ActionReadText:
		return nil
	case ActionSelect:
		if a.SelectBy != SelectByVisibleText && a.SelectBy != SelectByOptionValue {
			return fmt.Errorf("select action requires select_by text or value, got %q", a.SelectBy)
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// ActionResult is the outcome of a resilient interaction.
type ActionResult struct {
	Success bool
	// FinalLocator is the locator that resolved the element on the
	// successful (or last) attempt. Zero if resolution never succeeded.
	FinalLocator Locator
	// Strategy names the fallback step that performed the action.
	Strategy string
	// Value carries the text returned by read_text.
	Value    string
	Attempts int
	Err      error
}

type actionResultJSON struct {
	Success      bool     `json:"success"`
	FinalLocator *Locator `json:"final_locator,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
	Value        string   `json:"value,omitempty"`
	Attempts     int      `json:"attempts"`
	Error        string   `json:"error,omitempty"`
}

func (r ActionResult) MarshalJSON() ([]byte, error) {
	out := actionResultJSON{
		Success:  r.Success,
		Strategy: r.Strategy,
		Value:    r.Value,
		Attempts: r.Attempts,
	}
	if !r.FinalLocator.IsZero() {
		loc := r.FinalLocator
		out.FinalLocator = &loc
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
