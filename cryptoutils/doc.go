// Package cryptoutils implements the payload encryption used by the sealing
// pre-save hooks.
//
// Two schemes are provided:
//
//   - EncryptWithPublicKey / DecryptWithPrivateKey: ECIES over NIST curves
//     (ECDH with a fresh ephemeral key, SHA-256 of the shared secret as the
//     AES-256-GCM key).
//   - SealWithPassphrase / OpenWithPassphrase: XChaCha20-Poly1305 under a key
//     derived from a passphrase with Argon2id and a random salt.
//
// # ECIES envelope
//
//	[ephemeral key length (2 bytes)][ephemeral key][nonce (12 bytes)][ciphertext]
//
// The ephemeral key is an uncompressed curve point.
//
// # Passphrase envelope
//
//	["SEAL1"][salt (16 bytes)][nonce (24 bytes)][ciphertext]
//
// The magic prefix is authenticated as additional data.
package cryptoutils
