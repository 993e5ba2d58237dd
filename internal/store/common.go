package store

// Prefix constants for all record types
const (
	prefixOperational byte = iota + 1
	prefixAirline
	prefixFlight
	prefixOracle
	prefixRequest
	prefixPolicy
	prefixBalance
	prefixCaller
	prefixMeta
)

var keyHeight = []byte("height")

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixOperational:
		return "operational"
	case prefixAirline:
		return "airline"
	case prefixFlight:
		return "flight"
	case prefixOracle:
		return "oracle"
	case prefixRequest:
		return "request"
	case prefixPolicy:
		return "policy"
	case prefixBalance:
		return "balance"
	case prefixCaller:
		return "caller"
	case prefixMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and the record's identifying parts
func makeKey(prefix byte, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	key = append(key, prefix)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}
