package webauthn

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/introspect-app/authcore/pkg/domain"
)

// buildAuthData assembles authenticator data bytes in the wire layout.
// credID and coseKey are appended only when the attested-credential-data
// flag is set.
func buildAuthData(rpID string, flags byte, signCount uint32, credID, coseKey []byte) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))
	out := append([]byte(nil), rpIDHash[:]...)
	out = append(out, flags)
	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], signCount)
	out = append(out, counter[:]...)
	if flags&flagAttestedCredentialData != 0 {
		out = append(out, make([]byte, 16)...) // AAGUID
		var idLen [2]byte
		binary.BigEndian.PutUint16(idLen[:], uint16(len(credID)))
		out = append(out, idLen[:]...)
		out = append(out, credID...)
		out = append(out, coseKey...)
	}
	return out
}

func TestParseAuthenticatorData_Plain(t *testing.T) {
	raw := buildAuthData("example.com", flagUserPresent, 42, nil, nil)

	ad, err := parseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parseAuthenticatorData: %v", err)
	}
	wantHash := sha256.Sum256([]byte("example.com"))
	if !bytes.Equal(ad.RPIDHash, wantHash[:]) {
		t.Error("rpIdHash mismatch")
	}
	if ad.Flags != flagUserPresent {
		t.Errorf("Flags = %#x, want %#x", ad.Flags, flagUserPresent)
	}
	if ad.SignCount != 42 {
		t.Errorf("SignCount = %d, want 42", ad.SignCount)
	}
	if ad.CredentialID != nil || ad.PublicKey != nil {
		t.Error("unexpected attested credential data")
	}
}

func TestParseAuthenticatorData_Attested(t *testing.T) {
	credID := []byte("credential-id-bytes")
	coseKey := []byte{0xa1, 0x01, 0x02} // any non-empty remainder
	raw := buildAuthData("example.com", flagUserPresent|flagAttestedCredentialData, 0, credID, coseKey)

	ad, err := parseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parseAuthenticatorData: %v", err)
	}
	if !bytes.Equal(ad.CredentialID, credID) {
		t.Errorf("CredentialID = %q, want %q", ad.CredentialID, credID)
	}
	if !bytes.Equal(ad.PublicKey, coseKey) {
		t.Errorf("PublicKey = %x, want %x", ad.PublicKey, coseKey)
	}
}

func TestParseAuthenticatorData_Malformed(t *testing.T) {
	attested := buildAuthData("example.com", flagAttestedCredentialData, 0, []byte("cred"), []byte{0x01})

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"truncated header", make([]byte, 36)},
		{"attested flag but no attested data", buildAuthData("example.com", flagAttestedCredentialData, 0, nil, nil)},
		{"truncated credential id", attested[:len(attested)-6]},
		{"missing public key", buildAuthData("example.com", flagAttestedCredentialData, 0, []byte("cred"), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseAuthenticatorData(tt.raw); !errors.Is(err, domain.ErrMalformedAssertion) {
				t.Errorf("parseAuthenticatorData = %v, want ErrMalformedAssertion", err)
			}
		})
	}
}
