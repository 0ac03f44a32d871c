package extraction

// EntityKind tells which automaton a field belongs to
type EntityKind int

const (
	KindNode EntityKind = iota
	KindEdge
)

func (k EntityKind) String() string {
	if k == KindEdge {
		return "edge"
	}
	return "node"
}

// FieldKey names a field of the micro-syntax
type FieldKey string

const (
	FieldID          FieldKey = "id"
	FieldNodeType    FieldKey = "node_type"
	FieldTitle       FieldKey = "title"
	FieldDescription FieldKey = "description"
	FieldCitation    FieldKey = "citation"
	FieldConfidence  FieldKey = "confidence"
	FieldSourceID    FieldKey = "source_id"
	FieldTargetID    FieldKey = "target_id"
	FieldEdgeType    FieldKey = "edge_type"
)

// Marker is one entry of the field marker table: an opener byte followed by
// a key and a colon.
type Marker struct {
	Opener   byte
	Key      FieldKey
	Kind     EntityKind
	Starts   bool
	Terminal bool
}

// Markers is the ordered marker table recognised by the scanner
var Markers = []Marker{
	{Opener: '(', Key: FieldID, Kind: KindNode, Starts: true},
	{Opener: ',', Key: FieldNodeType, Kind: KindNode},
	{Opener: ',', Key: FieldTitle, Kind: KindNode},
	{Opener: ',', Key: FieldDescription, Kind: KindNode, Terminal: true},
	{Opener: ',', Key: FieldCitation, Kind: KindNode},
	{Opener: ',', Key: FieldConfidence, Kind: KindNode},
	{Opener: '(', Key: FieldSourceID, Kind: KindEdge, Starts: true},
	{Opener: ',', Key: FieldTargetID, Kind: KindEdge},
	{Opener: ',', Key: FieldEdgeType, Kind: KindEdge, Terminal: true},
}

func lookupMarker(opener byte, key string) (Marker, bool) {
	for _, m := range Markers {
		if m.Opener == opener && string(m.Key) == key {
			return m, true
		}
	}
	return Marker{}, false
}

// couldBecomeMarker reports whether key is a strict prefix of a known key for
// the opener, meaning more input may still complete it.
func couldBecomeMarker(opener byte, key string) bool {
	for _, m := range Markers {
		if m.Opener == opener && len(key) < len(m.Key) && string(m.Key[:len(key)]) == key {
			return true
		}
	}
	return false
}
