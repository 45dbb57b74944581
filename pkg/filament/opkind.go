package filament

// OpKind describes the operation that caused a track or trigger.
// It is carried on debug hooks and change notifications; the engine's
// own correctness never depends on it.
type OpKind uint8

const (
	// OpGet is a tracked read.
	OpGet OpKind = iota

	// OpSet is a value replacement on an existing slot.
	OpSet

	// OpAdd is a new key or index coming into existence.
	OpAdd

	// OpDelete is a key or index being removed.
	OpDelete

	// OpDirty is a computed value transitioning from clean to stale.
	OpDirty

	// OpLength is a collection's length changing.
	OpLength

	// OpStructure is a structural change (keys added/removed, resize)
	// distinct from any single slot's value.
	OpStructure
)

// String returns a human-readable name for the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpDirty:
		return "dirty"
	case OpLength:
		return "length"
	case OpStructure:
		return "structure"
	default:
		return "unknown"
	}
}

// Change describes a single mutation, delivered as the info payload of a
// trigger. Fields are populated as applicable to the signal kind.
type Change struct {
	// Key is the property key for map-shaped signals.
	Key string

	// Index is the element index for slice-shaped signals, -1 otherwise.
	Index int

	// Old is the previous value, when known.
	Old any

	// New is the value after the mutation, when known.
	New any
}
