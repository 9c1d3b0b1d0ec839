// Package mirroring is a thin WHEP-mirroring collaborator: it models the
// PeerConnection lifecycle a screen-mirroring transmitter needs without
// implementing the signaling HTTP endpoint or capture pipeline (out of
// scope — see the sender SDK's non-goals around platform capture and
// GStreamer).
package mirroring

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// ErrNotConnected is returned when an operation needs an active
// PeerConnection that hasn't been established yet.
var ErrNotConnected = errors.New("mirroring: not connected")

// SDPExchanger performs the WHEP offer/answer exchange against a receiver's
// signaling endpoint. Implementations own the actual HTTP transport; this
// package only drives the PeerConnection state machine around it.
type SDPExchanger interface {
	Exchange(offer webrtc.SessionDescription) (answer webrtc.SessionDescription, err error)
}

// Transmitter pushes a local media track to a receiver over WHEP. It owns
// one PeerConnection for the lifetime of a mirroring session.
type Transmitter struct {
	exchanger SDPExchanger

	mu    sync.Mutex
	pc    *webrtc.PeerConnection
	state webrtc.PeerConnectionState
}

// NewTransmitter creates a Transmitter that will negotiate through
// exchanger once Start is called.
func NewTransmitter(exchanger SDPExchanger) *Transmitter {
	return &Transmitter{exchanger: exchanger}
}

// Start creates the PeerConnection, adds track, negotiates an offer/answer
// via the exchanger, and applies the resulting remote description.
func (t *Transmitter) Start(track webrtc.TrackLocal) error {
	api := webrtc.NewAPI()
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return err
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.mu.Lock()
		t.state = state
		t.mu.Unlock()
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return err
	}

	answer, err := t.exchanger.Exchange(offer)
	if err != nil {
		_ = pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return err
	}

	t.mu.Lock()
	t.pc = pc
	t.mu.Unlock()
	return nil
}

// State reports the current PeerConnection connection state.
func (t *Transmitter) State() webrtc.PeerConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop tears down the PeerConnection.
func (t *Transmitter) Stop() error {
	t.mu.Lock()
	pc := t.pc
	t.pc = nil
	t.mu.Unlock()
	if pc == nil {
		return ErrNotConnected
	}
	return pc.Close()
}
