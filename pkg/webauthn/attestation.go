package webauthn

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/introspect-app/authcore/pkg/domain"
)

// attestationObject is the CBOR map an authenticator returns during
// registration: a format tag, a format-specific attestation statement,
// and the authenticator data bytes.
type attestationObject struct {
	Format       string          `cbor:"fmt"`
	AttStatement cbor.RawMessage `cbor:"attStmt"`
	AuthData     []byte          `cbor:"authData"`
}

// parseAttestationObject decodes an attestation object and its embedded
// authenticator data, which must carry attested credential data.
func parseAttestationObject(raw []byte) (*attestationObject, *authenticatorData, error) {
	var att attestationObject
	if err := cbor.Unmarshal(raw, &att); err != nil {
		return nil, nil, domain.ErrMalformedAssertion
	}
	if att.Format == "" || len(att.AuthData) == 0 {
		return nil, nil, domain.ErrMalformedAssertion
	}

	authData, err := parseAuthenticatorData(att.AuthData)
	if err != nil {
		return nil, nil, err
	}
	if authData.Flags&flagAttestedCredentialData == 0 || len(authData.PublicKey) == 0 {
		return nil, nil, domain.ErrMalformedAssertion
	}
	return &att, authData, nil
}
