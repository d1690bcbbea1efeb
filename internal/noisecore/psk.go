package noisecore

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"

	"github.com/beachsh/beach/internal/errs"
)

// pskInfoLabel is the fixed HKDF info string used when deriving the
// pre-shared key itself (spec §4.6: "PSK derived by HKDF(passphrase ‖
// session_id, handshake_id)": handshake_id is the HKDF salt here, the
// label below disambiguates this derivation from any other use of the
// same extract).
const pskInfoLabel = "beach/noise/psk/v1"

// DerivePSK derives the 32-byte Noise pre-shared key from a user
// passphrase, the session id, and the session's handshake id.
func DerivePSK(passphrase, sessionID, handshakeID string) ([]byte, error) {
	ikm := append([]byte(passphrase), []byte(sessionID)...)
	prk := hkdf.Extract(newBlake2sHash, ikm, []byte(handshakeID))
	out := make([]byte, hashLen)
	if _, err := readFullHash(hkdf.Expand(newBlake2sHash, prk, []byte(pskInfoLabel)), out); err != nil {
		return nil, errs.Wrap(errs.KindSetup, "derive psk", err)
	}
	return out, nil
}

// DirectionalKeys holds the post-handshake send/receive AEAD keys and
// the human-verifiable safety code, derived per spec §4.6 from the
// PSK and final handshake hash rather than Noise's standard Split().
type DirectionalKeys struct {
	SendKey          [32]byte
	RecvKey          [32]byte
	VerificationCode int
}

// DeriveDirectionalKeys computes send/recv keys and the 6-digit
// verification code for one peer in the conversation identified by
// localID/remoteID.
func DeriveDirectionalKeys(psk []byte, handshakeHash [hashLen]byte, localID, remoteID string) (DirectionalKeys, error) {
	prk := hkdf.Extract(newBlake2sHash, psk, handshakeHash[:])

	var dk DirectionalKeys
	sendLabel := fmt.Sprintf("media-direction:%s->%s", localID, remoteID)
	if err := expandInto(prk, sendLabel, dk.SendKey[:]); err != nil {
		return dk, err
	}
	recvLabel := fmt.Sprintf("media-direction:%s->%s", remoteID, localID)
	if err := expandInto(prk, recvLabel, dk.RecvKey[:]); err != nil {
		return dk, err
	}

	lo, hi := localID, remoteID
	if hi < lo {
		lo, hi = hi, lo
	}
	verifyLabel := fmt.Sprintf("media-verify:%s|%s", lo, hi)
	var verifyBytes [4]byte
	if err := expandInto(prk, verifyLabel, verifyBytes[:]); err != nil {
		return dk, err
	}
	dk.VerificationCode = int(binary.BigEndian.Uint32(verifyBytes[:]) % 1_000_000)

	return dk, nil
}

func expandInto(prk []byte, label string, dst []byte) error {
	if _, err := readFullHash(hkdf.Expand(newBlake2sHash, prk, []byte(label)), dst); err != nil {
		return errs.Wrap(errs.KindSetup, "expand "+label, err)
	}
	return nil
}
