package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Sign signs data with the private key using RSA-PKCS1v1.5/SHA-256 and
// returns a hex-encoded signature, per the canonical signing envelope.
func Sign(priv PrivateKey, data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded RSA-PKCS1v1.5/SHA-256 signature against data
// using the public key.
func Verify(pub PublicKey, data []byte, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pub.key, crypto.SHA256, digest[:], sig); err != nil {
		return errors.New("signature verification failed")
	}
	return nil
}
