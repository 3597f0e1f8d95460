package webauthn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/introspect-app/authcore/pkg/domain"
)

// COSE_Key labels and values (RFC 9052 / RFC 9053).
const (
	coseKeyTypeEC2 = 2

	coseCurveP256 = 1
	coseCurveP384 = 2
	coseCurveP521 = 3
)

// coseKey is the CBOR shape of a COSE_Key. Integer map labels: 1 kty,
// 3 alg, -1 crv, -2 x, -3 y.
type coseKey struct {
	KeyType   int    `cbor:"1,keyasint"`
	Algorithm int    `cbor:"3,keyasint,omitempty"`
	Curve     int    `cbor:"-1,keyasint,omitempty"`
	X         []byte `cbor:"-2,keyasint,omitempty"`
	Y         []byte `cbor:"-3,keyasint,omitempty"`
}

// parseCOSEPublicKey decodes COSE key bytes into an ECDSA public key.
// Anything other than an EC2 key on a supported NIST curve is a hard
// ErrUnsupportedKey: an unverifiable key never passes silently.
func parseCOSEPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	var key coseKey
	if err := cbor.Unmarshal(raw, &key); err != nil {
		return nil, domain.ErrMalformedAssertion
	}

	if key.KeyType != coseKeyTypeEC2 {
		return nil, domain.ErrUnsupportedKey
	}

	var curve elliptic.Curve
	switch key.Curve {
	case coseCurveP256:
		curve = elliptic.P256()
	case coseCurveP384:
		curve = elliptic.P384()
	case coseCurveP521:
		curve = elliptic.P521()
	default:
		return nil, domain.ErrUnsupportedKey
	}

	if len(key.X) == 0 || len(key.Y) == 0 {
		return nil, domain.ErrUnsupportedKey
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(key.X),
		Y:     new(big.Int).SetBytes(key.Y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, domain.ErrUnsupportedKey
	}
	return pub, nil
}
