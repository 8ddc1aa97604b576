package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

const gcmNonceSize = 12

var (
	ErrInvalidPEM        = errors.New("invalid PEM block")
	ErrUnsupportedKey    = errors.New("unsupported key type")
	ErrMalformedEnvelope = errors.New("malformed sealed envelope")
)

// EncryptWithPublicKey seals data to the holder of the private key matching
// publicKeyPEM (a PKIX "PUBLIC KEY" block for a NIST curve). A fresh
// ephemeral key is generated for every call.
//
// Envelope layout:
//
//	[ephemeral key length (2 bytes, big endian)][ephemeral key][nonce (12 bytes)][ciphertext+tag]
func EncryptWithPublicKey(publicKeyPEM []byte, data []byte) ([]byte, error) {
	recipient, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	ephemeral, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}

	gcm, err := newGCM(shared)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ephemeralPub := ephemeral.PublicKey().Bytes()
	out := make([]byte, 2, 2+len(ephemeralPub)+gcmNonceSize+len(data)+gcm.Overhead())
	binary.BigEndian.PutUint16(out, uint16(len(ephemeralPub)))
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// DecryptWithPrivateKey opens an envelope produced by EncryptWithPublicKey.
// privateKeyPEM may be an "EC PRIVATE KEY" (SEC 1) or a PKCS#8 "PRIVATE KEY" block.
func DecryptWithPrivateKey(privateKeyPEM []byte, envelope []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	if len(envelope) < 2 {
		return nil, ErrMalformedEnvelope
	}
	keyLen := int(binary.BigEndian.Uint16(envelope))
	if len(envelope) < 2+keyLen+gcmNonceSize {
		return nil, ErrMalformedEnvelope
	}

	ephemeralPub, err := priv.Curve().NewPublicKey(envelope[2 : 2+keyLen])
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeral key: %w", ErrMalformedEnvelope, err)
	}

	shared, err := priv.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}

	gcm, err := newGCM(shared)
	if err != nil {
		return nil, err
	}

	nonce := envelope[2+keyLen : 2+keyLen+gcmNonceSize]
	plaintext, err := gcm.Open(nil, nonce, envelope[2+keyLen+gcmNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(sharedSecret []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(sharedSecret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func parsePublicKey(publicKeyPEM []byte) (*ecdh.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: public key", ErrInvalidPEM)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	switch key := parsed.(type) {
	case *ecdsa.PublicKey:
		return key.ECDH()
	case *ecdh.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
	}
}

func parsePrivateKey(privateKeyPEM []byte) (*ecdh.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: private key", ErrInvalidPEM)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key.ECDH()
	default:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		switch key := parsed.(type) {
		case *ecdsa.PrivateKey:
			return key.ECDH()
		case *ecdh.PrivateKey:
			return key, nil
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
		}
	}
}
