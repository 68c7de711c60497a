package errors

import (
	"errors"
	"fmt"
)

// ErrorDump flattens an error for structured logs.
type ErrorDump struct {
	TopMessage string        `json:"top_message"`
	Code       Code          `json:"code,omitempty"`
	Chain      []string      `json:"chain,omitempty"`
	Store      *StoreFailure `json:"store,omitempty"`
}

// Dump walks err's Unwrap chain and records the typed code and any postgres
// failure found along it.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if failure, ok := AsStoreFailure(err); ok {
		d.Store = &failure
	}
	return d
}

// LogFields renders the dump as flat logger fields.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if s := d.Store; s != nil {
		fields["pg_code"] = s.SQLState
		fields["pg_constraint"] = s.Constraint
		fields["pg_table"] = s.Table
		fields["pg_detail"] = s.Detail
		fields["pg_message"] = s.Message
	}
	return fields
}
