package noisecore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/beachsh/beach/internal/errs"
)

// KeyPair is a static or ephemeral Curve25519 key pair.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh Curve25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return kp, errs.Wrap(errs.KindSetup, "generate keypair", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return kp, errs.Wrap(errs.KindSetup, "derive public key", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

func dh(priv [32]byte, pub [32]byte) ([]byte, error) {
	out, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return nil, errs.Wrap(errs.KindHandshake, "dh", err)
	}
	return out, nil
}

// buildPrologue constructs the handshake prologue per spec §4.6:
// "beach/noise/v1" | 0x1f | base64(handshake_id) | 0x1f |
// sorted(local_id, remote_id) | 0x1f | context.
func buildPrologue(handshakeID, localID, remoteID, context string) []byte {
	ids := []string{localID, remoteID}
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString("beach/noise/v1")
	b.WriteByte(0x1f)
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(handshakeID)))
	b.WriteByte(0x1f)
	b.WriteString(ids[0])
	b.WriteByte(',')
	b.WriteString(ids[1])
	b.WriteByte(0x1f)
	b.WriteString(context)
	return []byte(b.String())
}

// HandshakeState drives one side of a Noise_XXpsk2_25519_ChaChaPoly_BLAKE2s
// handshake. It is single-use: discard it once the handshake completes
// or fails.
type HandshakeState struct {
	ss *symmetricState

	initiator bool
	psk       []byte

	localStatic    KeyPair
	localEphemeral KeyPair
	remoteStatic   [32]byte
	remoteEphemeral [32]byte
	haveRemoteS    bool
	haveRemoteE    bool

	msgIndex int
}

// NewHandshake constructs a HandshakeState. localID/remoteID/context
// feed the prologue; psk is the pre-shared key derived via DerivePSK.
func NewHandshake(initiator bool, localStatic KeyPair, handshakeID, localID, remoteID, context string, psk []byte) (*HandshakeState, error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	prologue := buildPrologue(handshakeID, localID, remoteID, context)
	return &HandshakeState{
		ss:             newSymmetricState(prologue),
		initiator:      initiator,
		psk:            psk,
		localStatic:    localStatic,
		localEphemeral: ephemeral,
	}, nil
}

// WriteMessage produces the next handshake message (the empty payload
// and handshake-specific tokens are all that Noise_XX ever carries
// before transport mode).
func (hs *HandshakeState) WriteMessage(payload []byte) ([]byte, error) {
	var out []byte

	switch hs.msgIndex {
	case 0: // -> e
		if !hs.initiator {
			return nil, errs.New(errs.KindHandshake, "responder cannot write message 1")
		}
		out = append(out, hs.localEphemeral.Public[:]...)
		hs.ss.mixHash(hs.localEphemeral.Public[:])

	case 1: // <- e, ee, s, es, psk
		if hs.initiator {
			return nil, errs.New(errs.KindHandshake, "initiator cannot write message 2")
		}
		out = append(out, hs.localEphemeral.Public[:]...)
		hs.ss.mixHash(hs.localEphemeral.Public[:])

		eeOut, err := dh(hs.localEphemeral.Private, hs.remoteEphemeral)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(eeOut); err != nil {
			return nil, err
		}

		sCipher, err := hs.ss.encryptAndHash(hs.localStatic.Public[:])
		if err != nil {
			return nil, err
		}
		out = append(out, sCipher...)

		esOut, err := dh(hs.localStatic.Private, hs.remoteEphemeral)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(esOut); err != nil {
			return nil, err
		}

		if err := hs.ss.mixKeyAndHash(hs.psk); err != nil {
			return nil, err
		}

	case 2: // -> s, se
		if !hs.initiator {
			return nil, errs.New(errs.KindHandshake, "responder cannot write message 3")
		}
		sCipher, err := hs.ss.encryptAndHash(hs.localStatic.Public[:])
		if err != nil {
			return nil, err
		}
		out = append(out, sCipher...)

		seOut, err := dh(hs.localStatic.Private, hs.remoteEphemeral)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(seOut); err != nil {
			return nil, err
		}

	default:
		return nil, errs.New(errs.KindHandshake, "handshake already complete")
	}

	ct, err := hs.ss.encryptAndHash(payload)
	if err != nil {
		return nil, err
	}
	out = append(out, ct...)

	hs.msgIndex++
	return out, nil
}

// ReadMessage consumes the next handshake message and returns its
// (possibly empty) payload.
func (hs *HandshakeState) ReadMessage(msg []byte) ([]byte, error) {
	switch hs.msgIndex {
	case 0: // -> e
		if hs.initiator {
			return nil, errs.New(errs.KindHandshake, "initiator cannot read message 1")
		}
		if len(msg) < 32 {
			return nil, errs.New(errs.KindIncomplete, "message 1 too short")
		}
		copy(hs.remoteEphemeral[:], msg[:32])
		hs.haveRemoteE = true
		hs.ss.mixHash(hs.remoteEphemeral[:])
		return hs.finishRead(msg[32:])

	case 1: // <- e, ee, s, es, psk
		if !hs.initiator {
			return nil, errs.New(errs.KindHandshake, "responder cannot read message 2")
		}
		if len(msg) < 32 {
			return nil, errs.New(errs.KindIncomplete, "message 2 too short")
		}
		copy(hs.remoteEphemeral[:], msg[:32])
		hs.haveRemoteE = true
		hs.ss.mixHash(hs.remoteEphemeral[:])
		rest := msg[32:]

		eeOut, err := dh(hs.localEphemeral.Private, hs.remoteEphemeral)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(eeOut); err != nil {
			return nil, err
		}

		sCipherLen := 32
		if hs.ss.cs.hasKey {
			sCipherLen += chacha20poly1305.Overhead
		}
		if len(rest) < sCipherLen {
			return nil, errs.New(errs.KindIncomplete, "message 2 missing static key")
		}
		sPlain, err := hs.ss.decryptAndHash(rest[:sCipherLen])
		if err != nil {
			return nil, err
		}
		copy(hs.remoteStatic[:], sPlain)
		hs.haveRemoteS = true
		rest = rest[sCipherLen:]

		esOut, err := dh(hs.localEphemeral.Private, hs.remoteStatic)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(esOut); err != nil {
			return nil, err
		}

		if err := hs.ss.mixKeyAndHash(hs.psk); err != nil {
			return nil, err
		}

		return hs.finishRead(rest)

	case 2: // -> s, se
		if hs.initiator {
			return nil, errs.New(errs.KindHandshake, "initiator cannot read message 3")
		}
		sCipherLen := 32 + chacha20poly1305.Overhead
		if len(msg) < sCipherLen {
			return nil, errs.New(errs.KindIncomplete, "message 3 missing static key")
		}
		sPlain, err := hs.ss.decryptAndHash(msg[:sCipherLen])
		if err != nil {
			return nil, err
		}
		copy(hs.remoteStatic[:], sPlain)
		hs.haveRemoteS = true
		rest := msg[sCipherLen:]

		seOut, err := dh(hs.localEphemeral.Private, hs.remoteStatic)
		if err != nil {
			return nil, err
		}
		if err := hs.ss.mixKey(seOut); err != nil {
			return nil, err
		}

		return hs.finishRead(rest)

	default:
		return nil, errs.New(errs.KindHandshake, "handshake already complete")
	}
}

func (hs *HandshakeState) finishRead(ciphertext []byte) ([]byte, error) {
	pt, err := hs.ss.decryptAndHash(ciphertext)
	if err != nil {
		return nil, err
	}
	hs.msgIndex++
	return pt, nil
}

// Complete reports whether all three messages have been exchanged.
func (hs *HandshakeState) Complete() bool { return hs.msgIndex >= 3 }

// HandshakeHash returns the final transcript hash, used both as AEAD
// AAD for media frames and as input to post-handshake key derivation.
func (hs *HandshakeState) HandshakeHash() [hashLen]byte { return hs.ss.h }

// DiagnosticDigest returns a short, non-secret fingerprint of the
// current transcript hash for structured log fields, never the
// transcript hash itself, which remains an AEAD secret input.
func (hs *HandshakeState) DiagnosticDigest() string {
	sum := blake3.Sum256(hs.ss.h[:])
	return hex.EncodeToString(sum[:6])
}
