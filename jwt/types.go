package jwt

// Header is the JOSE header of a bearer token.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

// Claims is the payload of a bearer token. Subject is the holder's address.
type Claims struct {
	Issuer         string `json:"iss,omitempty"`
	Subject        string `json:"sub"`
	Audience       string `json:"aud,omitempty"`
	Role           string `json:"role"`
	IssuedAt       int64  `json:"iat"`
	ExpirationTime int64  `json:"exp"`
	JWTID          string `json:"jti,omitempty"`
}
