package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strconv"
)

// EncodePublicKey renders an Ed25519 public key in the registered store
// encoding: base64 wrapping a PEM block holding the PKIX form.
func EncodePublicKey(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(pemBytes), nil
}

// GenerateKeyPair returns a fresh Ed25519 key pair: the public key in the
// registered encoding and the private key as PKCS#8 PEM.
func GenerateKeyPair() (string, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, err
	}
	encoded, err := EncodePublicKey(pub)
	if err != nil {
		return "", nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", nil, err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return encoded, privPEM, nil
}

// ParsePrivateKeyPEM reads a PKCS#8 PEM Ed25519 private key.
func ParsePrivateKeyPEM(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 key")
	}
	return key, nil
}

// SignHandshake produces the base64 handshake signature over the maker's ID
// concatenated with the decimal millisecond timestamp.
func SignHandshake(priv ed25519.PrivateKey, marketMakerID string, timestamp int64) string {
	msg := marketMakerID + strconv.FormatInt(timestamp, 10)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(msg)))
}
