package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// AddressLength is the byte length of a ledger address (ed25519 public key size).
	AddressLength = 32
	// SignatureLength is the byte length of a transaction signature.
	SignatureLength = 64
)

// Address is a ledger account address. Its text form is base58.
type Address [AddressLength]byte

// ParseAddress decodes base58 text into an Address.
// Anything that is not exactly 32 bytes of valid base58 is rejected with ErrInvalidAddressFormat.
func ParseAddress(text string) (Address, error) {
	var a Address
	text = strings.TrimSpace(text)
	if text == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalidAddressFormat)
	}
	raw, err := base58.Decode(text)
	if err != nil {
		return a, fmt.Errorf("%w: %q: %v", ErrInvalidAddressFormat, text, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddressFormat, text, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants. Panics on bad input.
func MustParseAddress(text string) Address {
	a, err := ParseAddress(text)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: %d bytes", ErrInvalidAddressFormat, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns the canonical byte representation.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// Short returns the first 8 characters of the text form, for logs.
func (a Address) Short() string {
	s := a.String()
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Signature identifies a submitted transaction. Its text form is base58.
type Signature [SignatureLength]byte

// ParseSignature decodes base58 text into a Signature.
func ParseSignature(text string) (Signature, error) {
	var s Signature
	raw, err := base58.Decode(strings.TrimSpace(text))
	if err != nil {
		return s, fmt.Errorf("invalid signature %q: %w", text, err)
	}
	if len(raw) != SignatureLength {
		return s, fmt.Errorf("invalid signature %q: %d bytes", text, len(raw))
	}
	copy(s[:], raw)
	return s, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether the signature slot is still empty.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
