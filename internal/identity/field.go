package identity

import (
	"bytes"
	"encoding/json"
)

// Field is an optional string. The zero value is unmatched and marshals to JSON null.
type Field struct {
	value string
	ok    bool
}

func Matched(v string) Field { return Field{value: v, ok: true} }

func Unmatched() Field { return Field{} }

func (f Field) Value() (string, bool) { return f.value, f.ok }

func (f Field) IsMatched() bool { return f.ok }

// Or returns the value, or def when unmatched.
func (f Field) Or(def string) string {
	if !f.ok {
		return def
	}
	return f.value
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Field) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Unmatched()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = Matched(s)
	return nil
}

// Record holds the fields read from an identity card. Every field is independently
// optional; an all-unmatched record is valid and still flows downstream.
type Record struct {
	Name       Field `json:"name"`
	Surname    Field `json:"surname"`
	NationalID Field `json:"national_id"`
}

// Empty reports whether nothing was recognized.
func (r Record) Empty() bool {
	return !r.Name.ok && !r.Surname.ok && !r.NationalID.ok
}
