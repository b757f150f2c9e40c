package resp

// Kind identifies the shape of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInteger
	KindBulkString
	KindSimpleString
	KindArray
	KindError
	KindBoolean
	KindDouble
	KindBigNumber
	KindMap
	KindSet
	KindPush
)

var kindNames = [...]string{
	KindNil:          "nil",
	KindInteger:      "integer",
	KindBulkString:   "bulk-string",
	KindSimpleString: "simple-string",
	KindArray:        "array",
	KindError:        "error",
	KindBoolean:      "boolean",
	KindDouble:       "double",
	KindBigNumber:    "big-number",
	KindMap:          "map",
	KindSet:          "set",
	KindPush:         "push",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Frame type markers
const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'

	// RESP3 extensions
	TypeNull           = '_'
	TypeBoolean        = '#'
	TypeDouble         = ','
	TypeBigNumber      = '('
	TypeBlobError      = '!'
	TypeVerbatimString = '='
	TypeMap            = '%'
	TypeSet            = '~'
	TypeAttribute      = '|'
	TypePush           = '>'
)

// CRLF terminates every header line and every bulk payload.
const CRLF = "\r\n"

// Protocol limits. Frames declaring larger sizes are rejected as malformed
// before any payload is buffered.
const (
	// MaxBulkLen is the largest bulk string accepted (the server-side
	// proto-max-bulk-len default).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxAggregateLen bounds the declared element count of an aggregate.
	MaxAggregateLen = 1 << 31

	// MaxLineLen bounds a header or simple line.
	MaxLineLen = 64 * 1024

	// preallocLimit caps the capacity reserved for an aggregate up front,
	// so a large declared count cannot force a large allocation.
	preallocLimit = 1024
)
