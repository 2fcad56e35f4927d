package ezid

import (
	"strings"

	"arkimedes/internal/anvl"
)

// Request is one registry operation. The set of implementations is closed.
type Request interface {
	Action() Action
	// Subject returns the identifier or shoulder the request addresses.
	Subject() string
	request()
}

// MintRequest asks the registry to create an identifier under Shoulder. An
// empty Shoulder selects the client's configured default.
type MintRequest struct {
	Shoulder string
	Record   anvl.Record
}

// UpdateRequest replaces metadata of an existing identifier.
type UpdateRequest struct {
	Identifier string
	Record     anvl.Record
}

// QueryRequest reads the current metadata of an identifier.
type QueryRequest struct {
	Identifier string
}

func (MintRequest) Action() Action   { return ActionMint }
func (UpdateRequest) Action() Action { return ActionUpdate }
func (QueryRequest) Action() Action  { return ActionQuery }

func (r MintRequest) Subject() string   { return r.Shoulder }
func (r UpdateRequest) Subject() string { return r.Identifier }
func (r QueryRequest) Subject() string  { return r.Identifier }

func (MintRequest) request()   {}
func (UpdateRequest) request() {}
func (QueryRequest) request()  {}

// NewRequest builds the request variant for action from a record. The
// identifier of updates and queries comes from the record's _id; mints must
// not carry one (an empty _id cell is dropped).
func NewRequest(action Action, rec anvl.Record, shoulder string) (Request, error) {
	if !action.Valid() {
		return nil, &InvalidActionError{Value: action.String()}
	}
	id := strings.TrimSpace(rec.Identifier())
	switch action {
	case ActionMint:
		if id != "" {
			return nil, &ValidationError{
				Field:  anvl.KeyIdentifier,
				Reason: "mint assigns the identifier; remove " + id + " or use update",
			}
		}
		return MintRequest{Shoulder: strings.TrimSpace(shoulder), Record: rec.Without(anvl.KeyIdentifier)}, nil
	case ActionUpdate:
		if id == "" {
			return nil, &ValidationError{Field: anvl.KeyIdentifier, Reason: "update requires an identifier"}
		}
		return UpdateRequest{Identifier: id, Record: rec.Without(anvl.KeyIdentifier)}, nil
	default:
		if id == "" {
			return nil, &ValidationError{Field: anvl.KeyIdentifier, Reason: "query requires an identifier"}
		}
		return QueryRequest{Identifier: id}, nil
	}
}

// ParseRequest is NewRequest for an action that arrives as text.
func ParseRequest(action string, rec anvl.Record, shoulder string) (Request, error) {
	parsed, err := ParseAction(action)
	if err != nil {
		return nil, err
	}
	return NewRequest(parsed, rec, shoulder)
}

// Result is the outcome of a successful request. Record always carries the
// identifier under _id as its first key.
type Result struct {
	Identifier string
	// Shadow is the secondary identifier reported for DOI mints, if any.
	Shadow string
	Record anvl.Record
}
