// Package id defines TypeID-based identifiers for lockup records.
//
// Pools, schedules, stake positions and receipts each carry an ID whose
// prefix names the record kind ("pool_01h...", "stk_01h..."). IDs sort by
// creation time because the suffix is a UUIDv7.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the record kind encoded in a TypeID.
type Prefix string

// Known prefixes.
const (
	PrefixPool     Prefix = "pool" // Vesting pool
	PrefixSchedule Prefix = "vsch" // Beneficiary vesting schedule
	PrefixPosition Prefix = "stk"  // Stake position
	PrefixReceipt  Prefix = "rcpt" // Value movement receipt
)

// ID is a prefix-qualified, globally unique identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses any TypeID string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects it unless its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Kind aliases
// ──────────────────────────────────────────────────

// PoolID identifies a vesting pool (prefix: "pool").
type PoolID = ID

// ScheduleID identifies a beneficiary schedule (prefix: "vsch").
type ScheduleID = ID

// PositionID identifies a stake position (prefix: "stk").
type PositionID = ID

// ReceiptID identifies a receipt (prefix: "rcpt").
type ReceiptID = ID

// NewPoolID generates a pool ID.
func NewPoolID() ID { return New(PrefixPool) }

// NewScheduleID generates a schedule ID.
func NewScheduleID() ID { return New(PrefixSchedule) }

// NewPositionID generates a stake position ID.
func NewPositionID() ID { return New(PrefixPosition) }

// NewReceiptID generates a receipt ID.
func NewReceiptID() ID { return New(PrefixReceipt) }

// ParsePoolID parses s and requires the "pool" prefix.
func ParsePoolID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPool) }

// ParseScheduleID parses s and requires the "vsch" prefix.
func ParseScheduleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSchedule) }

// ParsePositionID parses s and requires the "stk" prefix.
func ParsePositionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPosition) }

// ParseReceiptID parses s and requires the "rcpt" prefix.
func ParseReceiptID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReceipt) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer; Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
