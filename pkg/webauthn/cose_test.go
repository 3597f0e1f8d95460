package webauthn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/introspect-app/authcore/pkg/domain"
)

// marshalCOSEKey encodes a COSE_Key map for an ECDSA public key.
func marshalCOSEKey(t *testing.T, pub *ecdsa.PublicKey, curve int) []byte {
	t.Helper()
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	raw, err := cbor.Marshal(map[int]interface{}{
		1:  coseKeyTypeEC2,
		3:  -7, // ES256
		-1: curve,
		-2: pub.X.FillBytes(make([]byte, byteLen)),
		-3: pub.Y.FillBytes(make([]byte, byteLen)),
	})
	if err != nil {
		t.Fatalf("marshal COSE key: %v", err)
	}
	return raw
}

func generateKey(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestParseCOSEPublicKey_SupportedCurves(t *testing.T) {
	tests := []struct {
		name  string
		curve elliptic.Curve
		cose  int
	}{
		{"P-256", elliptic.P256(), coseCurveP256},
		{"P-384", elliptic.P384(), coseCurveP384},
		{"P-521", elliptic.P521(), coseCurveP521},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := generateKey(t, tt.curve)
			raw := marshalCOSEKey(t, &key.PublicKey, tt.cose)

			pub, err := parseCOSEPublicKey(raw)
			if err != nil {
				t.Fatalf("parseCOSEPublicKey: %v", err)
			}
			if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
				t.Error("decoded point does not match")
			}
		})
	}
}

func TestParseCOSEPublicKey_Unsupported(t *testing.T) {
	p256 := generateKey(t, elliptic.P256())

	mustMarshal := func(m map[int]interface{}) []byte {
		raw, err := cbor.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return raw
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{
			// OKP keys (Ed25519) are not verifiable here.
			name: "non-EC2 key type",
			raw: mustMarshal(map[int]interface{}{
				1: 1, 3: -8, -1: 6, -2: make([]byte, 32),
			}),
		},
		{
			name: "unknown curve",
			raw: mustMarshal(map[int]interface{}{
				1: coseKeyTypeEC2, 3: -7, -1: 99,
				-2: p256.PublicKey.X.FillBytes(make([]byte, 32)),
				-3: p256.PublicKey.Y.FillBytes(make([]byte, 32)),
			}),
		},
		{
			name: "missing coordinates",
			raw: mustMarshal(map[int]interface{}{
				1: coseKeyTypeEC2, 3: -7, -1: coseCurveP256,
			}),
		},
		{
			name: "point not on curve",
			raw: mustMarshal(map[int]interface{}{
				1: coseKeyTypeEC2, 3: -7, -1: coseCurveP256,
				-2: p256.PublicKey.X.FillBytes(make([]byte, 32)),
				-3: make([]byte, 32), // zeroed Y
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseCOSEPublicKey(tt.raw); !errors.Is(err, domain.ErrUnsupportedKey) {
				t.Errorf("parseCOSEPublicKey = %v, want ErrUnsupportedKey", err)
			}
		})
	}
}

func TestParseCOSEPublicKey_Garbage(t *testing.T) {
	if _, err := parseCOSEPublicKey([]byte{0xff, 0x00, 0x01}); !errors.Is(err, domain.ErrMalformedAssertion) {
		t.Errorf("parseCOSEPublicKey garbage = %v, want ErrMalformedAssertion", err)
	}
}
