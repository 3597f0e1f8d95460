package webauthn

import (
	"encoding/binary"

	"github.com/introspect-app/authcore/pkg/domain"
)

// Authenticator data flag bits.
const (
	flagUserPresent            = 0x01
	flagUserVerified           = 0x04
	flagAttestedCredentialData = 0x40
)

// authenticatorData is the fixed-layout structure both ceremonies
// carry: 32-byte RP ID hash, 1 flag byte, 4-byte big-endian signature
// counter, then - only when the attested-credential-data flag is set -
// a 16-byte AAGUID, a 2-byte big-endian credential id length, the
// credential id, and the COSE-encoded public key.
type authenticatorData struct {
	RPIDHash     []byte
	Flags        byte
	SignCount    uint32
	AAGUID       []byte
	CredentialID []byte
	PublicKey    []byte // raw COSE bytes, trailing remainder
}

const authDataMinLen = 37

// parseAuthenticatorData decodes the fixed layout. Truncated input of
// any shape is a malformed assertion, never a partial parse.
func parseAuthenticatorData(raw []byte) (*authenticatorData, error) {
	if len(raw) < authDataMinLen {
		return nil, domain.ErrMalformedAssertion
	}

	ad := &authenticatorData{
		RPIDHash:  raw[:32],
		Flags:     raw[32],
		SignCount: binary.BigEndian.Uint32(raw[33:37]),
	}

	if ad.Flags&flagAttestedCredentialData == 0 {
		return ad, nil
	}

	rest := raw[authDataMinLen:]
	if len(rest) < 18 {
		return nil, domain.ErrMalformedAssertion
	}
	ad.AAGUID = rest[:16]
	idLen := int(binary.BigEndian.Uint16(rest[16:18]))
	rest = rest[18:]
	if len(rest) < idLen {
		return nil, domain.ErrMalformedAssertion
	}
	ad.CredentialID = rest[:idLen]
	ad.PublicKey = rest[idLen:]
	if len(ad.PublicKey) == 0 {
		return nil, domain.ErrMalformedAssertion
	}
	return ad, nil
}
