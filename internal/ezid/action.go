package ezid

import (
	"fmt"
	"strings"
)

// Action is an operation requested against the registry for one identifier.
type Action int

const (
	ActionMint Action = iota + 1
	ActionUpdate
	ActionQuery
)

var actionNames = map[Action]string{
	ActionMint:   "mint",
	ActionUpdate: "update",
	ActionQuery:  "query",
}

// Actions lists every legal action in a stable order.
func Actions() []Action {
	return []Action{ActionMint, ActionUpdate, ActionQuery}
}

// actionChoices renders the legal actions as "a, b or c".
func actionChoices() string {
	all := Actions()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.String()
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + " or " + names[last]
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is one of the three legal actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// Mutates reports whether the action changes registry state.
func (a Action) Mutates() bool {
	return a == ActionMint || a == ActionUpdate
}

// ParseAction converts external input into an Action. Matching ignores case
// and surrounding whitespace; anything else is an InvalidActionError.
func ParseAction(value string) (Action, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for action, name := range actionNames {
		if name == normalized {
			return action, nil
		}
	}
	return 0, &InvalidActionError{Value: value}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, &InvalidActionError{Value: a.String()}
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
