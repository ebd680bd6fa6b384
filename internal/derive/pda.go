// Package derive computes program-derived addresses for vote tallies and voted flags.
//
// A program-derived address is sha256(seeds || bump || programID || "ProgramDerivedAddress")
// for the highest bump whose hash is not a valid ed25519 point, so no private key can sign for it.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"token_vote/internal/domain"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")
)

// CreateProgramAddress hashes seeds (bump included by the caller) with the program id.
// It fails with ErrInvalidSeeds when the result lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, error) {
	if len(seeds) > MaxSeeds {
		return domain.Address{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return domain.Address{}, fmt.Errorf("%w: seed of %d bytes", ErrMaxSeedLengthExceeded, len(seed))
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var out domain.Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return domain.Address{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return domain.Address{}, 0, err
		}
	}
	return domain.Address{}, 0, fmt.Errorf("%w: no viable bump", ErrInvalidSeeds)
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
