package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// KeyBits is the RSA modulus size used for all validator and voter keys.
const KeyBits = 2048

// PrivateKey wraps an RSA private key.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// PublicKey wraps an RSA public key. Identity on the chain is the
// hex-encoded PKCS1 DER encoding of this key (spec.md §6).
type PublicKey struct {
	key *rsa.PublicKey
}

// GenerateKeyPair generates a new RSA key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return PrivateKey{}, PublicKey{}, err
	}
	return PrivateKey{key: priv}, PublicKey{key: &priv.PublicKey}, nil
}

// Address returns a 40-char hex address derived from the public key.
// It takes the first 20 bytes of SHA-256(pkcs1 DER).
func (pub PublicKey) Address() string {
	h := HashBytes(x509.MarshalPKCS1PublicKey(pub.key))
	return hex.EncodeToString(h[:20])
}

// Hex returns the hex-encoded PKCS1 DER public key — the chain identity
// format used by voter_key/proposer fields throughout the wire protocol.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(x509.MarshalPKCS1PublicKey(pub.key))
}

// IsZero reports whether pub was never assigned a key.
func (pub PublicKey) IsZero() bool {
	return pub.key == nil
}

// Equal reports whether pub and other represent the same RSA public key.
func (pub PublicKey) Equal(other PublicKey) bool {
	if pub.key == nil || other.key == nil {
		return pub.key == other.key
	}
	return pub.key.Equal(other.key)
}

// Hex returns the hex-encoded PKCS1 DER private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(x509.MarshalPKCS1PrivateKey(priv.key))
}

// Public derives the public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey{key: &priv.key.PublicKey}
}

// IsZero reports whether priv was never assigned a key.
func (priv PrivateKey) IsZero() bool {
	return priv.key == nil
}

// PubKeyFromHex decodes a hex-encoded PKCS1 DER public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	key, err := x509.ParsePKCS1PublicKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey DER: %w", err)
	}
	return PublicKey{key: key}, nil
}

// PrivKeyFromHex decodes a hex-encoded PKCS1 DER private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("invalid privkey hex: %w", err)
	}
	key, err := x509.ParsePKCS1PrivateKey(b)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("invalid privkey DER: %w", err)
	}
	return PrivateKey{key: key}, nil
}
