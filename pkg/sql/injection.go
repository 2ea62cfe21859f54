package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a host-supplied value that libinjection flagged.
type InjectionFinding struct {
	Field       string
	Value       string
	Fingerprint string
}

func (f *InjectionFinding) Error() string {
	return fmt.Sprintf("%s rejected: value matches SQL injection fingerprint %q", f.Field, f.Fingerprint)
}

// CheckIdentifier runs libinjection over one value destined for a template.
// Templates interpolate node attributes verbatim, so anything the host sends
// (database, schema, table labels) is screened first. Returns nil when clean.
func CheckIdentifier(field, value string) *InjectionFinding {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{Field: field, Value: value, Fingerprint: string(fingerprint)}
}

// ScreenIdentifiers checks every field and returns the first finding in
// field-name order, or nil.
func ScreenIdentifiers(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if finding := CheckIdentifier(name, fields[name]); finding != nil {
			return finding
		}
	}
	return nil
}
