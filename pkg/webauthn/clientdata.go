package webauthn

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"

	"github.com/introspect-app/authcore/pkg/domain"
)

// Ceremony types carried in clientDataJSON.
const (
	ceremonyCreate = "webauthn.create"
	ceremonyGet    = "webauthn.get"
)

// clientData is the parsed form of the clientDataJSON an authenticator
// returns alongside attestations and assertions.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"` // base64url, no padding
	Origin    string `json:"origin"`
}

// parseClientData decodes clientDataJSON and checks the declared
// ceremony type and the challenge against the one the server issued.
func parseClientData(raw []byte, wantType string, wantChallenge []byte) (*clientData, error) {
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, domain.ErrMalformedAssertion
	}
	if cd.Type != wantType {
		return nil, domain.ErrChallengeMismatch
	}

	got, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return nil, domain.ErrChallengeMismatch
	}
	if subtle.ConstantTimeCompare(got, wantChallenge) != 1 {
		return nil, domain.ErrChallengeMismatch
	}
	return &cd, nil
}
