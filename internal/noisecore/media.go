package noisecore

import (
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/beachsh/beach/internal/errs"
)

// MediaVersion is the only recognized media frame version byte.
const MediaVersion uint8 = 1

// mediaHeaderLen is version(1) + nonce(12) + ciphertext_len(4).
const mediaHeaderLen = 1 + 12 + 4

// Sealer encrypts outgoing media frames with a strictly increasing
// counter (spec §3.8, §4.6).
type Sealer struct {
	aead    cipher.AEAD
	counter uint64
	aad     []byte
}

// NewSealer constructs a Sealer bound to key and a fixed AAD (the
// handshake hash).
func NewSealer(key [32]byte, aad [hashLen]byte) (*Sealer, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.KindCipher, "init sealer", err)
	}
	return &Sealer{aead: aead, aad: append([]byte(nil), aad[:]...)}, nil
}

// Seal encrypts plaintext into a self-describing media frame.
func (s *Sealer) Seal(plaintext []byte) []byte {
	nonce := nonceFor(s.counter)
	ciphertext := s.aead.Seal(nil, nonce, plaintext, s.aad)
	s.counter++

	out := make([]byte, mediaHeaderLen+len(ciphertext))
	out[0] = MediaVersion
	copy(out[1:13], nonce)
	binary.BigEndian.PutUint32(out[13:17], uint32(len(ciphertext)))
	copy(out[17:], ciphertext)
	return out
}

// Opener decrypts incoming media frames and rejects replays.
type Opener struct {
	aead       cipher.AEAD
	aad        []byte
	lastCounter uint64
	seenAny    bool
}

// NewOpener constructs an Opener bound to key and a fixed AAD (the
// handshake hash, matching the peer's Sealer).
func NewOpener(key [32]byte, aad [hashLen]byte) (*Opener, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.KindCipher, "init opener", err)
	}
	return &Opener{aead: aead, aad: append([]byte(nil), aad[:]...)}, nil
}

// Open decrypts a media frame produced by Seal, rejecting any frame
// whose counter is not strictly greater than the last accepted one.
func (o *Opener) Open(frame []byte) ([]byte, error) {
	if len(frame) < mediaHeaderLen {
		return nil, errs.New(errs.KindIncomplete, "media frame too short")
	}
	if frame[0] != MediaVersion {
		return nil, errs.New(errs.KindUnsupportedFrame, itoaU8(frame[0]))
	}
	nonce := frame[1:13]
	ctLen := binary.BigEndian.Uint32(frame[13:17])
	if int(ctLen) != len(frame)-mediaHeaderLen {
		return nil, errs.New(errs.KindInvalidFrame, "ciphertext_len mismatch")
	}

	counter := binary.BigEndian.Uint64(nonce[4:12])
	if o.seenAny && counter <= o.lastCounter {
		return nil, errs.New(errs.KindReplay, itoaU64(counter))
	}

	plaintext, err := o.aead.Open(nil, nonce, frame[mediaHeaderLen:], o.aad)
	if err != nil {
		return nil, errs.Wrap(errs.KindCipher, "aead open", err)
	}

	o.lastCounter = counter
	o.seenAny = true
	return plaintext, nil
}

func itoaU8(v uint8) string  { return itoaU64(uint64(v)) }
func itoaU64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
