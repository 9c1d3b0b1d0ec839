package fcast

import (
	"fmt"
	"net"
)

// ProtocolType distinguishes the two device families the sender SDK talks
// to. Chromecast devices are handled by a parallel adapter in
// internal/chromecast; this package only implements FCast.
type ProtocolType int

const (
	ProtocolFCast ProtocolType = iota
	ProtocolChromecast
)

// DeviceFeature enumerates optional capabilities a device may or may not
// support, queried via Controller.SupportsFeature.
type DeviceFeature int

const (
	FeatureSetVolume DeviceFeature = iota
	FeatureSetSpeed
	FeatureLoadContent
	FeatureLoadURL
	FeatureKeyEventSubscription
	FeatureMediaEventSubscription
	FeatureLoadImage
	FeatureLoadPlaylist
	FeaturePlaylistNextAndPrevious
	FeatureSetPlaylistItemIndex
	FeatureWhepStreaming
)

// DeviceInfo describes a reachable device: how to dial it and what protocol
// it speaks.
type DeviceInfo struct {
	Name      string
	Protocol  ProtocolType
	Addresses []net.IP
	Port      uint16
}

// Addr returns "host:port" for the first address, suitable for net.Dial.
func (d DeviceInfo) Addr() (string, error) {
	if len(d.Addresses) == 0 {
		return "", fmt.Errorf("fcast: device %q has no addresses", d.Name)
	}
	return net.JoinHostPort(d.Addresses[0].String(), fmt.Sprint(d.Port)), nil
}

// DeviceError is returned by Controller command methods.
type DeviceError struct {
	Kind string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fcast: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fcast: %s", e.Kind)
}

func (e *DeviceError) Unwrap() error { return e.Err }

var (
	ErrFailedToSendCommand   = &DeviceError{Kind: "failed to send command"}
	ErrMissingAddresses      = &DeviceError{Kind: "missing addresses"}
	ErrDeviceAlreadyStarted  = &DeviceError{Kind: "device already started"}
	ErrUnsupportedSubscription = &DeviceError{Kind: "unsupported subscription"}
	ErrUnsupportedFeature    = &DeviceError{Kind: "unsupported feature"}
)

// Metadata describes the media item being loaded, mirrored onto the wire
// MetadataObject.
type Metadata struct {
	Title        string
	ThumbnailURL string
}

func (m Metadata) toWire() *MetadataObject {
	if m.Title == "" && m.ThumbnailURL == "" {
		return nil
	}
	wire := &MetadataObject{}
	if m.Title != "" {
		t := m.Title
		wire.Title = &t
	}
	if m.ThumbnailURL != "" {
		u := m.ThumbnailURL
		wire.ThumbnailURL = &u
	}
	return wire
}

// PlaylistItem is one entry of a LoadRequestPlaylist.
type PlaylistItem struct {
	ContentType     string
	URL             string
	ResumePosition  float64
	Speed           float64
	Volume          float64
	Metadata        Metadata
	RequestHeaders  map[string]string
}

// LoadRequestKind discriminates the LoadRequest variants.
type LoadRequestKind int

const (
	LoadRequestURL LoadRequestKind = iota
	LoadRequestContent
	LoadRequestVideo
	LoadRequestImage
	LoadRequestPlaylist
)

// LoadRequest is the sum type describing everything Controller.Load can be
// asked to start playing.
type LoadRequest struct {
	Kind           LoadRequestKind
	ContentType    string
	URL            string
	Content        string
	ResumePosition *float64
	Speed          *float64
	Volume         *float64
	Metadata       Metadata
	RequestHeaders map[string]string
	Items          []PlaylistItem
}

// KeyName is a device-level remote-control key identifier (distinct from
// the protocol-level ProtoKeyName used in EventSubscribeObject).
type KeyName int

const (
	KeyArrowLeft KeyName = iota
	KeyArrowRight
	KeyArrowUp
	KeyArrowDown
	KeyOk
)

func (k KeyName) String() string {
	switch k {
	case KeyArrowLeft:
		return "ArrowLeft"
	case KeyArrowRight:
		return "ArrowRight"
	case KeyArrowUp:
		return "ArrowUp"
	case KeyArrowDown:
		return "ArrowDown"
	case KeyOk:
		return "Ok"
	}
	return "Unknown"
}

// AllKeys returns every device-level key name.
func AllKeys() []KeyName {
	return []KeyName{KeyArrowLeft, KeyArrowRight, KeyArrowUp, KeyArrowDown, KeyOk}
}

// EventSubscription is the device-level analogue of EventSubscribeObject,
// used by Controller.Subscribe/Unsubscribe.
type EventSubscription struct {
	Type EventSubscribeObject
}
