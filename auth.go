package netcore

import (
	"crypto/rand"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
	"github.com/pkg/errors"
)

// ConnectChallenge is a server-issued nonce a client must sign with an
// nkeys Ed25519 seed to authenticate at connect time, via a nonce-then-
// signature handshake.
type ConnectChallenge struct {
	Nonce []byte
}

// NewConnectChallenge generates a fresh random nonce to send to a
// connecting client.
func NewConnectChallenge() (*ConnectChallenge, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "netcore: generate connect challenge nonce")
	}
	return &ConnectChallenge{Nonce: nonce}, nil
}

// Sign signs the challenge with kp, for the client side of the
// handshake.
func (c *ConnectChallenge) Sign(kp nkeys.KeyPair) ([]byte, error) {
	sig, err := kp.Sign(c.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "netcore: sign connect challenge")
	}
	return sig, nil
}

// Verify checks a client's signature over this challenge against its
// claimed nkeys public key, for the server side of the handshake.
func (c *ConnectChallenge) Verify(publicKey string, sig []byte) error {
	kp, err := nkeys.FromPublicKey(publicKey)
	if err != nil {
		return errors.Wrap(err, "netcore: parse client public key")
	}
	if err := kp.Verify(c.Nonce, sig); err != nil {
		return errors.Wrap(ErrHandshakeFailure, "connect challenge signature mismatch")
	}
	return nil
}

// VerifyBearerJWT decodes and validates a bearer JWT presented on an
// HTTP upgrade or WebSocket handshake (spec §3 DOMAIN STACK), checking
// it against the expected issuer account public key.
func VerifyBearerJWT(token, issuerPublicKey string) (*jwt.UserClaims, error) {
	claims, err := jwt.DecodeUserClaims(token)
	if err != nil {
		return nil, errors.Wrap(err, "netcore: decode bearer jwt")
	}
	var vr jwt.ValidationResults
	claims.Validate(&vr)
	if vr.IsBlocking(true) {
		return nil, errors.Wrap(ErrHandshakeFailure, "bearer jwt failed validation")
	}
	if claims.Issuer != issuerPublicKey {
		return nil, errors.Wrap(ErrHandshakeFailure, "bearer jwt issuer mismatch")
	}
	return claims, nil
}
