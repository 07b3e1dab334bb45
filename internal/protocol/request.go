package protocol

// Verb is a recognized command. The set is closed.
type Verb uint8

const (
	VerbSet Verb = iota + 1
	VerbAdd
	VerbReplace
	VerbAppend
	VerbPrepend
	VerbGet
)

var verbNames = map[string]Verb{
	"set":     VerbSet,
	"add":     VerbAdd,
	"replace": VerbReplace,
	"append":  VerbAppend,
	"prepend": VerbPrepend,
	"get":     VerbGet,
}

func ParseVerb(s string) (Verb, bool) {
	v, ok := verbNames[s]
	return v, ok
}

func (v Verb) String() string {
	switch v {
	case VerbSet:
		return "set"
	case VerbAdd:
		return "add"
	case VerbReplace:
		return "replace"
	case VerbAppend:
		return "append"
	case VerbPrepend:
		return "prepend"
	case VerbGet:
		return "get"
	default:
		return "unknown"
	}
}

// IsWrite reports whether the verb carries a payload segment.
func (v Verb) IsWrite() bool {
	switch v {
	case VerbSet, VerbAdd, VerbReplace, VerbAppend, VerbPrepend:
		return true
	default:
		return false
	}
}

// Request is one decoded frame. Read verbs only fill Verb and Key.
type Request struct {
	Verb Verb
	Key  string

	Value   []byte
	Flags   uint16
	Exptime int64
	Size    int
	NoReply bool
}
