package models

import "strings"

// Address mirrors original_source/common/src/address.rs: a thin string
// wrapper with a blank sentinel for coinbase/no-source transfers.
type Address struct {
	value string
}

// NewAddress wraps s unchanged; String returns it as given. Lowercasing for
// SPEC_FULL §3's storage invariant happens in StorageForm, which the record
// constructors use, so an address checksummed by the account adapter is
// still persisted in lowercase.
func NewAddress(s string) Address {
	return Address{value: s}
}

// BlankAddress is the empty, coinbase "from" address.
func BlankAddress() Address {
	return Address{}
}

// IsBlank reports whether this is the coinbase sentinel.
func (a Address) IsBlank() bool {
	return a.value == ""
}

// String returns the address as stored.
func (a Address) String() string {
	return a.value
}

// StorageForm lowercases the address for warehouse persistence.
func (a Address) StorageForm() string {
	return strings.ToLower(a.value)
}
