package main

import (
	"github.com/google/uuid"

	"github.com/beachsh/beach/internal/noisecore"
	"github.com/beachsh/beach/internal/wstransport"
)

// handshakeContext names the Noise prologue context shared by every
// beach session (spec §4.6's buildPrologue "context" component).
const handshakeContext = "beach-session"

// handshakePreamble is exchanged in plaintext over the raw websocket
// before the Noise handshake begins, so both sides agree on the
// handshake_id and peer ids the prologue and PSK derivation need. The
// wire protocol proper has no room for this below transport mode.
type handshakePreamble struct {
	HandshakeID string `json:"handshake_id,omitempty"`
	PeerID      string `json:"peer_id"`
}

// serverNoiseHandshake drives the responder side: the host generates a
// fresh handshake id, advertises it and its own peer id, learns the
// client's peer id, then runs Noise_XXpsk2 to completion.
func serverNoiseHandshake(conn *wstransport.Conn, hostStatic noisecore.KeyPair, hostID, passphrase, sessionID string) (sealer *noisecore.Sealer, opener *noisecore.Opener, clientID string, err error) {
	handshakeID := uuid.NewString()
	if err = conn.SendPreamble(handshakePreamble{HandshakeID: handshakeID, PeerID: hostID}); err != nil {
		return nil, nil, "", err
	}
	var clientPre handshakePreamble
	if err = conn.ReadPreamble(&clientPre); err != nil {
		return nil, nil, "", err
	}
	clientID = clientPre.PeerID

	psk, err := noisecore.DerivePSK(passphrase, sessionID, handshakeID)
	if err != nil {
		return nil, nil, "", err
	}
	hs, err := noisecore.NewHandshake(false, hostStatic, handshakeID, hostID, clientID, handshakeContext, psk)
	if err != nil {
		return nil, nil, "", err
	}
	if err = conn.Handshake(hs, false); err != nil {
		return nil, nil, "", err
	}

	hash := hs.HandshakeHash()
	dk, err := noisecore.DeriveDirectionalKeys(psk, hash, hostID, clientID)
	if err != nil {
		return nil, nil, "", err
	}
	sealer, err = noisecore.NewSealer(dk.SendKey, hash)
	if err != nil {
		return nil, nil, "", err
	}
	opener, err = noisecore.NewOpener(dk.RecvKey, hash)
	if err != nil {
		return nil, nil, "", err
	}
	return sealer, opener, clientID, nil
}

// clientNoiseHandshake drives the initiator side: the client learns the
// host's handshake id and peer id from the preamble, advertises its own
// id, then runs Noise_XXpsk2 to completion.
func clientNoiseHandshake(conn *wstransport.Conn, clientStatic noisecore.KeyPair, clientID, passphrase, sessionID string) (sealer *noisecore.Sealer, opener *noisecore.Opener, err error) {
	var hostPre handshakePreamble
	if err = conn.ReadPreamble(&hostPre); err != nil {
		return nil, nil, err
	}
	if err = conn.SendPreamble(handshakePreamble{PeerID: clientID}); err != nil {
		return nil, nil, err
	}

	psk, err := noisecore.DerivePSK(passphrase, sessionID, hostPre.HandshakeID)
	if err != nil {
		return nil, nil, err
	}
	hs, err := noisecore.NewHandshake(true, clientStatic, hostPre.HandshakeID, clientID, hostPre.PeerID, handshakeContext, psk)
	if err != nil {
		return nil, nil, err
	}
	if err = conn.Handshake(hs, true); err != nil {
		return nil, nil, err
	}

	hash := hs.HandshakeHash()
	dk, err := noisecore.DeriveDirectionalKeys(psk, hash, clientID, hostPre.PeerID)
	if err != nil {
		return nil, nil, err
	}
	sealer, err = noisecore.NewSealer(dk.SendKey, hash)
	if err != nil {
		return nil, nil, err
	}
	opener, err = noisecore.NewOpener(dk.RecvKey, hash)
	if err != nil {
		return nil, nil, err
	}
	return sealer, opener, nil
}
