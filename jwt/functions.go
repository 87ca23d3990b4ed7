package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const signingInfo = "healthvault bearer token v1"

func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty token secret")
	}
	key := make([]byte, 32)
	_, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(signingInfo)), key)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func sign(target, secret string) ([]byte, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(target))
	return mac.Sum(nil), nil
}

// Create creates a HS256 token signed with a key derived from secret
func Create(claims Claims, secret string) (string, error) {
	header := Header{
		Type:      "JWT",
		Algorithm: "HS256",
	}
	headerStr, err := json.Marshal(header)
	if err != nil {
		return "", err
	}

	payloadStr, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerB64 := base64.RawURLEncoding.EncodeToString(headerStr)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadStr)
	target := headerB64 + "." + payloadB64

	signatureBytes, err := sign(target, secret)
	if err != nil {
		return "", err
	}
	signatureB64 := base64.RawURLEncoding.EncodeToString(signatureBytes)

	return target + "." + signatureB64, nil
}

// Validate checks the signature first, then expiry. Claims are only returned
// when both pass.
func Validate(jwt string, secret string) (*Header, *Claims, error) {
	return validateAt(jwt, secret, time.Now())
}

func validateAt(jwt string, secret string, now time.Time) (*Header, *Claims, error) {

	split := strings.Split(jwt, ".")
	if len(split) != 3 {
		return nil, nil, fmt.Errorf("invalid jwt format")
	}

	var header Header
	headerBytes, err := base64.RawURLEncoding.DecodeString(split[0])
	if err != nil {
		return nil, nil, err
	}
	err = json.Unmarshal(headerBytes, &header)
	if err != nil {
		return nil, nil, err
	}

	// check jwt type
	if header.Type != "JWT" || header.Algorithm != "HS256" {
		return nil, nil, fmt.Errorf("unsupported jwt type")
	}

	// check signature
	signatureBytes, err := base64.RawURLEncoding.DecodeString(split[2])
	if err != nil {
		return nil, nil, err
	}
	expected, err := sign(split[0]+"."+split[1], secret)
	if err != nil {
		return nil, nil, err
	}
	if !hmac.Equal(signatureBytes, expected) {
		return nil, nil, fmt.Errorf("invalid jwt signature")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(split[1])
	if err != nil {
		return nil, nil, err
	}

	var claims Claims
	err = json.Unmarshal(payloadBytes, &claims)
	if err != nil {
		return nil, nil, err
	}

	// check exp
	if claims.ExpirationTime == 0 {
		return nil, nil, fmt.Errorf("jwt has no expiration")
	}
	if claims.ExpirationTime < now.Unix() {
		return nil, nil, fmt.Errorf("jwt is already expired")
	}

	if claims.Subject == "" {
		return nil, nil, fmt.Errorf("jwt has no subject")
	}

	// all checks passed
	return &header, &claims, nil
}
