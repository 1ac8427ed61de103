// Package signing produces the detached JWS and signed request contexts the
// financial-grade profile requires on every outbound call.
package signing

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"obconnect/internal/keystore"
	dErrors "obconnect/pkg/domain-errors"
)

// Custom JOSE claims required by the UK Open Banking profile. All three must
// be listed in the crit header so verifiers that do not understand them
// reject the token instead of ignoring them.
const (
	ClaimIssuedAt    = "http://openbanking.org.uk/iat"
	ClaimIssuer      = "http://openbanking.org.uk/iss"
	ClaimTrustAnchor = "http://openbanking.org.uk/tan"

	trustAnchor = "openbanking.org.uk"
	contentType = "application/json"
)

// Signer signs request payloads with one signing key. It holds only the key
// material and issuer identity it needs; construct one per software
// statement and pass it by reference into request builders.
type Signer struct {
	key    keystore.SigningKey
	issuer string
	now    func() time.Time
}

func NewSigner(key keystore.SigningKey, issuer string) *Signer {
	return &Signer{key: key, issuer: issuer, now: time.Now}
}

// DetachedJWS signs the payload and returns the detached representation
// "<b64(header)>..<b64(signature)>". The payload segment is omitted because
// it travels as the request body; the bank reconstructs it before verifying.
//
// useB64 adds the b64 encoding-negotiation marker for legacy profile
// versions (pre-v3.1.4); current profiles leave it off.
func (s *Signer) DetachedJWS(payload []byte, useB64 bool) (string, error) {
	if s.key.PrivateKey == nil {
		return "", dErrors.New(dErrors.CodeSigning, "signing key has no private key material")
	}
	header := map[string]any{
		"alg":            jwt.SigningMethodPS256.Alg(),
		"kid":            s.key.KeyID,
		"cty":            contentType,
		ClaimIssuedAt:    s.now().Unix(),
		ClaimIssuer:      s.issuer,
		ClaimTrustAnchor: trustAnchor,
	}
	crit := []string{ClaimIssuedAt, ClaimIssuer, ClaimTrustAnchor}
	if useB64 {
		crit = append(crit, "b64")
		header["b64"] = false
	}
	header["crit"] = crit

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeEncoding, "marshal jose header")
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(payload)
	sig, err := jwt.SigningMethodPS256.Sign(signingInput, s.key.PrivateKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeSigning, "sign request payload")
	}

	jws := signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
	return DetachSignature(jws), nil
}

// DetachSignature drops the payload segment of a compact JWS, yielding
// "header..signature".
func DetachSignature(jws string) string {
	parts := strings.Split(jws, ".")
	return parts[0] + ".." + parts[2]
}
