package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrDataI is context attached to an *Error with SetData.
type ErrDataI interface {
	Error() string
	GetData(key string) interface{}
	SetData(key string, value interface{})
}

type ErrData map[string]interface{}

// Error returns the data as " key=value" pairs sorted by key.
func (e *ErrData) Error() string {
	if e == nil {
		return ""
	}

	keys := make([]string, 0, len(*e))
	for k := range *e {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, (*e)[k])
	}

	return sb.String()
}

func (e *ErrData) SetData(key string, value interface{}) {
	if e == nil {
		return
	}

	if *e == nil {
		*e = ErrData{}
	}

	(*e)[key] = value
}

func (e *ErrData) GetData(key string) interface{} {
	if e == nil {
		return nil
	}

	return (*e)[key]
}
