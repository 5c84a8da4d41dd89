package errors

import "strconv"

// ERR is the error code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN             ERR = 0
	ERR_INVALID_ARGUMENT    ERR = 1
	ERR_NOT_FOUND           ERR = 3
	ERR_PROCESSING          ERR = 4
	ERR_CONFIGURATION       ERR = 5
	ERR_CONTEXT_CANCELED    ERR = 7
	ERR_ERROR               ERR = 9
	ERR_BLOCK_NOT_FOUND     ERR = 10
	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_ERROR       ERR = 52
	ERR_STORAGE_UNAVAILABLE ERR = 60
	ERR_STORAGE_ERROR       ERR = 62
	ERR_READ_ERROR          ERR = 63
	ERR_INVARIANT_VIOLATION ERR = 90
)

var (
	ERR_name = map[int32]string{
		0:  "UNKNOWN",
		1:  "INVALID_ARGUMENT",
		3:  "NOT_FOUND",
		4:  "PROCESSING",
		5:  "CONFIGURATION",
		7:  "CONTEXT_CANCELED",
		9:  "ERROR",
		10: "BLOCK_NOT_FOUND",
		50: "SERVICE_UNAVAILABLE",
		52: "SERVICE_ERROR",
		60: "STORAGE_UNAVAILABLE",
		62: "STORAGE_ERROR",
		63: "READ_ERROR",
		90: "INVARIANT_VIOLATION",
	}

	ERR_value = map[string]int32{
		"UNKNOWN":             0,
		"INVALID_ARGUMENT":    1,
		"NOT_FOUND":           3,
		"PROCESSING":          4,
		"CONFIGURATION":       5,
		"CONTEXT_CANCELED":    7,
		"ERROR":               9,
		"BLOCK_NOT_FOUND":     10,
		"SERVICE_UNAVAILABLE": 50,
		"SERVICE_ERROR":       52,
		"STORAGE_UNAVAILABLE": 60,
		"STORAGE_ERROR":       62,
		"READ_ERROR":          63,
		"INVARIANT_VIOLATION": 90,
	}
)

func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}
