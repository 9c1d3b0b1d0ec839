// Package chromecast is a summary-level parallel adapter for Google Cast
// receivers, exposing the same device-level surface as internal/fcast's
// Controller without reimplementing the Cast v2 protobuf/TLS transport.
package chromecast

import (
	"errors"
	"net"
)

// ErrTransportNotImplemented is returned by every command on Device: the
// Cast protobuf/TLS channel itself is out of scope here, only the device
// shape is modeled.
var ErrTransportNotImplemented = errors.New("chromecast: protobuf/TLS transport not implemented")

// DeviceInfo describes a discovered Chromecast receiver, mirroring
// fcast.DeviceInfo so callers can treat both protocols uniformly upstream.
type DeviceInfo struct {
	Name      string
	Addresses []net.IP
	Port      uint16
	Model     string
}

// LoadRequest is the Chromecast analogue of fcast.LoadRequest: enough to
// describe what a CastingDevice-shaped sender API would need, without the
// receiver-application launch handshake the full Cast protocol requires.
type LoadRequest struct {
	ContentType string
	URL         string
	Title       string
	ResumeTime  float64
}

// Device is a parallel CastingDevice-shaped handle for a Chromecast
// receiver. Every operation except Disconnect returns
// ErrTransportNotImplemented; Disconnect returns nil. Building the real
// CASTV2 protobuf/TLS transport is out of this implementation's scope, a
// full session and wire layer unto itself.
type Device struct {
	Info DeviceInfo
}

// NewDevice wraps discovered Chromecast device info in a Device handle.
func NewDevice(info DeviceInfo) *Device {
	return &Device{Info: info}
}

func (d *Device) Connect() error                 { return ErrTransportNotImplemented }
func (d *Device) Load(req LoadRequest) error      { return ErrTransportNotImplemented }
func (d *Device) Pause() error                    { return ErrTransportNotImplemented }
func (d *Device) Resume() error                   { return ErrTransportNotImplemented }
func (d *Device) Stop() error                     { return ErrTransportNotImplemented }
func (d *Device) Seek(time float64) error          { return ErrTransportNotImplemented }
func (d *Device) SetVolume(volume float64) error   { return ErrTransportNotImplemented }
func (d *Device) Disconnect() error                { return nil }
