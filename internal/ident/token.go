package ident

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Token is a signed reconnect credential in the layout
// rt1.<base64url(claims JSON)>.<base64url(HMAC-SHA-256 signature)>.
type Token string

func (t Token) String() string { return string(t) }

const (
	tokenPrefix  = "rt1"
	nonceBytes   = 16
	maxTokenLen  = 512
	claimVersion = 1
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseToken validates the shape of a presented token without verifying it.
func ParseToken(raw string) (Token, error) {
	if raw == "" || len(raw) > maxTokenLen {
		return "", fmt.Errorf("invalid reconnect token length")
	}
	return Token(raw), nil
}

// Claims is the signed payload bound into a reconnect token.
type Claims struct {
	Version    int       `json:"v"`
	SessionID  SessionID `json:"sid"`
	LobbyID    LobbyID   `json:"lid"`
	PlayerID   PlayerID  `json:"pid"`
	IssuedAtMs int64     `json:"iat"`
	Nonce      string    `json:"n"`
}

// VerifyKind classifies why a token failed verification.
type VerifyKind string

const (
	VerifyMalformed        VerifyKind = "MALFORMED"
	VerifyInvalidSignature VerifyKind = "INVALID_SIGNATURE"
	VerifyExpired          VerifyKind = "EXPIRED"
	VerifyClaimMismatch    VerifyKind = "CLAIM_MISMATCH"
)

// VerifyError is a structured verification failure. The message never
// contains the presented token.
type VerifyError struct {
	Kind    VerifyKind
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("reconnect token %s: %s", e.Kind, e.Message)
}

func verifyFailf(kind VerifyKind, format string, args ...any) *VerifyError {
	return &VerifyError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Expect constrains which claims a verified token must carry. Zero-valued
// fields are not checked.
type Expect struct {
	SessionID SessionID
	LobbyID   LobbyID
	PlayerID  PlayerID
}

// Issuer mints and verifies reconnect tokens with a fixed HMAC key. The key
// is read-only after construction, so an Issuer is safe for concurrent use.
type Issuer struct {
	secret   []byte
	maxAgeMs int64
	skewMs   int64
	nowMs    func() int64
}

// DefaultTokenMaxAgeMs bounds how long a reconnect token stays verifiable.
const DefaultTokenMaxAgeMs = 24 * 60 * 60 * 1000

// DefaultClockSkewMs tolerates issuer/verifier clock drift on the iat claim.
const DefaultClockSkewMs = 30 * 1000

// NewIssuer builds an issuer over secret. Non-positive maxAgeMs or skewMs
// fall back to the defaults; a nil clock uses wall time.
func NewIssuer(secret []byte, maxAgeMs, skewMs int64, nowMs func() int64) *Issuer {
	if maxAgeMs <= 0 {
		maxAgeMs = DefaultTokenMaxAgeMs
	}
	if skewMs < 0 {
		skewMs = DefaultClockSkewMs
	}
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	key := append([]byte(nil), secret...)
	return &Issuer{secret: key, maxAgeMs: maxAgeMs, skewMs: skewMs, nowMs: nowMs}
}

// Issue signs a fresh token binding the session to its lobby and player.
func (i *Issuer) Issue(sid SessionID, lid LobbyID, pid PlayerID) (Token, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating token nonce: %w", err)
	}
	claims := Claims{
		Version:    claimVersion,
		SessionID:  sid,
		LobbyID:    lid,
		PlayerID:   pid,
		IssuedAtMs: i.nowMs(),
		Nonce:      base64.RawURLEncoding.EncodeToString(nonce),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encoding token claims: %w", err)
	}
	seg := base64.RawURLEncoding.EncodeToString(payload)
	sig := base64.RawURLEncoding.EncodeToString(i.sign(seg))
	return Token(tokenPrefix + "." + seg + "." + sig), nil
}

// Verify checks layout, signature, freshness, and the expected claims, in
// that order. The signature check is constant-time.
func (i *Issuer) Verify(tok Token, expect Expect) (Claims, *VerifyError) {
	parts := strings.Split(string(tok), ".")
	if len(parts) != 3 {
		return Claims{}, verifyFailf(VerifyMalformed, "expected 3 segments, got %d", len(parts))
	}
	if parts[0] != tokenPrefix {
		return Claims{}, verifyFailf(VerifyMalformed, "unknown token prefix")
	}
	for _, seg := range parts[1:] {
		if !segmentPattern.MatchString(seg) {
			return Claims{}, verifyFailf(VerifyMalformed, "segment is not base64url")
		}
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, verifyFailf(VerifyMalformed, "signature segment does not decode")
	}
	if !hmac.Equal(sig, i.sign(parts[1])) {
		return Claims{}, verifyFailf(VerifyInvalidSignature, "signature mismatch")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, verifyFailf(VerifyMalformed, "payload segment does not decode")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, verifyFailf(VerifyMalformed, "payload is not valid claims JSON")
	}
	if claims.Version != claimVersion {
		return Claims{}, verifyFailf(VerifyMalformed, "unsupported claims version %d", claims.Version)
	}

	now := i.nowMs()
	if claims.IssuedAtMs > now+i.skewMs {
		return Claims{}, verifyFailf(VerifyExpired, "token issued in the future")
	}
	if now > claims.IssuedAtMs+i.maxAgeMs {
		return Claims{}, verifyFailf(VerifyExpired, "token is past its maximum age")
	}

	if expect.SessionID != "" && claims.SessionID != expect.SessionID {
		return Claims{}, verifyFailf(VerifyClaimMismatch, "session claim mismatch")
	}
	if expect.LobbyID != "" && claims.LobbyID != expect.LobbyID {
		return Claims{}, verifyFailf(VerifyClaimMismatch, "lobby claim mismatch")
	}
	if expect.PlayerID != "" && claims.PlayerID != expect.PlayerID {
		return Claims{}, verifyFailf(VerifyClaimMismatch, "player claim mismatch")
	}
	return claims, nil
}

func (i *Issuer) sign(payloadSegment string) []byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(payloadSegment))
	return mac.Sum(nil)
}
