// Package noisecore implements the Noise_XXpsk2_25519_ChaChaPoly_BLAKE2s
// session core (spec §3.8, §4.6): a passphrase-derived-PSK handshake,
// directional post-handshake AEAD keys, and replay-resistant media
// framing.
//
// Grounded on thyth-nosshtradamus's use of golang.org/x/crypto/ssh and
// golang.org/x/crypto/ed25519 for its encrypted proxy session (same
// x/crypto library family and "derive session keys, then frame
// ciphertext" shape); no example repo implements Noise directly, so
// the handshake state machine itself follows the Noise Protocol
// Framework specification's token rules, built on
// golang.org/x/crypto's curve25519, chacha20poly1305, hkdf, and
// blake2s primitives.
package noisecore

import (
	"crypto/cipher"
	"hash"
	"io"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/beachsh/beach/internal/errs"
)

// newBlake2sHash adapts blake2s.New256 to the func() hash.Hash
// constructor shape hkdf.Extract/hkdf.Expand require.
func newBlake2sHash() hash.Hash {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic("blake2s.New256: " + err.Error())
	}
	return h
}

func readFullHash(r io.Reader, dst []byte) (int, error) {
	return io.ReadFull(r, dst)
}

const hashLen = 32

// protocolName is the full Noise protocol string; its BLAKE2s-256 hash
// seeds the initial handshake hash (len(protocolName) > hashLen).
const protocolName = "Noise_XXpsk2_25519_ChaChaPoly_BLAKE2s"

func blakeHash(parts ...[]byte) [hashLen]byte {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic("blake2s.New256: " + err.Error())
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [hashLen]byte
	copy(out[:], h.Sum(nil))
	return out
}

// cipherState holds one direction's symmetric AEAD key and nonce
// counter (spec §3.8: "Per direction: {aead_key, counter, aad}").
type cipherState struct {
	aead    cipher.AEAD
	hasKey  bool
	counter uint64
}

func (cs *cipherState) initializeKey(key [hashLen]byte) error {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return errs.Wrap(errs.KindCipher, "init aead", err)
	}
	cs.aead = aead
	cs.hasKey = true
	cs.counter = 0
	return nil
}

func nonceFor(counter uint64) []byte {
	var nonce [chacha20poly1305.NonceSize]byte
	// First 4 bytes zero, last 8 bytes the big-endian counter (spec
	// §4.6: "Nonce = [0u8;4] ‖ counter_be_u64").
	nonce[4] = byte(counter >> 56)
	nonce[5] = byte(counter >> 48)
	nonce[6] = byte(counter >> 40)
	nonce[7] = byte(counter >> 32)
	nonce[8] = byte(counter >> 24)
	nonce[9] = byte(counter >> 16)
	nonce[10] = byte(counter >> 8)
	nonce[11] = byte(counter)
	return nonce[:]
}

func (cs *cipherState) encryptWithAd(ad, plaintext []byte) ([]byte, error) {
	if !cs.hasKey {
		return append([]byte(nil), plaintext...), nil
	}
	out := cs.aead.Seal(nil, nonceFor(cs.counter), plaintext, ad)
	cs.counter++
	return out, nil
}

func (cs *cipherState) decryptWithAd(ad, ciphertext []byte) ([]byte, error) {
	if !cs.hasKey {
		return append([]byte(nil), ciphertext...), nil
	}
	out, err := cs.aead.Open(nil, nonceFor(cs.counter), ciphertext, ad)
	if err != nil {
		return nil, errs.Wrap(errs.KindCipher, "aead open", err)
	}
	cs.counter++
	return out, nil
}

// symmetricState tracks the handshake's chaining key and running hash,
// following the Noise Protocol Framework's SymmetricState object.
type symmetricState struct {
	ck [hashLen]byte
	h  [hashLen]byte
	cs cipherState
}

func newSymmetricState(prologue []byte) *symmetricState {
	h0 := blakeHash([]byte(protocolName))
	ss := &symmetricState{ck: h0, h: h0}
	ss.mixHash(prologue)
	return ss
}

func (ss *symmetricState) mixHash(data []byte) {
	ss.h = blakeHash(ss.h[:], data)
}

// mixKey derives a new chaining key and cipher key from input key
// material (a DH output), discarding the old cipher state.
func (ss *symmetricState) mixKey(ikm []byte) error {
	out1, out2, _, err := hkdfExpand3(ss.ck[:], ikm, 2)
	if err != nil {
		return err
	}
	ss.ck = out1
	return ss.cs.initializeKey(out2)
}

// mixKeyAndHash is used for the "psk" token: it updates ck, folds a
// derived value into h, and re-keys the cipher state.
func (ss *symmetricState) mixKeyAndHash(ikm []byte) error {
	out1, out2, out3, err := hkdfExpand3(ss.ck[:], ikm, 3)
	if err != nil {
		return err
	}
	ss.ck = out1
	ss.mixHash(out2[:])
	return ss.cs.initializeKey(out3)
}

func (ss *symmetricState) encryptAndHash(plaintext []byte) ([]byte, error) {
	ct, err := ss.cs.encryptWithAd(ss.h[:], plaintext)
	if err != nil {
		return nil, err
	}
	ss.mixHash(ct)
	return ct, nil
}

func (ss *symmetricState) decryptAndHash(ciphertext []byte) ([]byte, error) {
	pt, err := ss.cs.decryptWithAd(ss.h[:], ciphertext)
	if err != nil {
		return nil, err
	}
	ss.mixHash(ciphertext)
	return pt, nil
}

// hkdfExpand3 implements the Noise HKDF(chaining_key, input, n) helper
// that produces 2 or 3 pseudorandom 32-byte outputs via HKDF-Extract
// then successive HKDF-Expand calls. n must be 2 or 3; out3 is the
// zero value when n==2.
func hkdfExpand3(chainingKey, ikm []byte, n int) (out1, out2, out3 [hashLen]byte, err error) {
	prk := hkdf.Extract(newBlake2sHash, ikm, chainingKey)

	r1 := hkdf.Expand(newBlake2sHash, prk, []byte{0x01})
	if _, err = readFullHash(r1, out1[:]); err != nil {
		return out1, out2, out3, err
	}

	r2 := hkdf.Expand(newBlake2sHash, prk, append(append([]byte{}, out1[:]...), 0x02))
	if _, err = readFullHash(r2, out2[:]); err != nil {
		return out1, out2, out3, err
	}

	if n < 3 {
		return out1, out2, out3, nil
	}

	r3 := hkdf.Expand(newBlake2sHash, prk, append(append([]byte{}, out2[:]...), 0x03))
	if _, err = readFullHash(r3, out3[:]); err != nil {
		return out1, out2, out3, err
	}
	return out1, out2, out3, nil
}
