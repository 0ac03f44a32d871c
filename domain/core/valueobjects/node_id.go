package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// canonicalIDLength is the length of the 8-4-4-4-12 hexadecimal form
const canonicalIDLength = 36

// NodeID is a value object representing a minted entity identifier.
// Nodes and edges share the same identifier format.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing canonical string.
// Hex digits are stored lowercase so case variants compare equal.
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	if len(id) != canonicalIDLength {
		return NodeID{}, errors.New("node ID must be a canonical UUID")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return NodeID{}, errors.New("node ID must be a canonical UUID")
	}
	return NodeID{value: parsed.String()}, nil
}

// IsCanonicalID reports whether s already has the 8-4-4-4-12 hex shape of a
// minted identifier. uuid.Parse alone also accepts urn and brace forms.
func IsCanonicalID(s string) bool {
	if len(s) != canonicalIDLength {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

