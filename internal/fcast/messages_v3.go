package fcast

import (
	"encoding/json"
	"fmt"
)

// PlayMessage is the v3 Play command body: adds volume and a typed metadata
// object over the v2 schema.
type PlayMessage struct {
	Container string            `json:"container"`
	URL       *string           `json:"url,omitempty"`
	Content   *string           `json:"content,omitempty"`
	Time      *float64          `json:"time,omitempty"`
	Volume    *float64          `json:"volume,omitempty"`
	Speed     *float64          `json:"speed,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Metadata  *MetadataObject   `json:"metadata,omitempty"`
}

// MetadataObject is a tagged union over metadata kinds; the only variant
// defined on the wire today is Generic (type 0).
type MetadataObject struct {
	Title        *string
	ThumbnailURL *string
	// Custom is free-form JSON. A nil Custom omits the field entirely; a
	// present-but-JSON-null Custom still emits "custom":null, matching the
	// reference implementation's distinction between "absent" and "null".
	Custom    json.RawMessage
	hasCustom bool
}

// SetCustom records custom as present, emitting "custom":null if it is nil.
func (m *MetadataObject) SetCustom(custom json.RawMessage) {
	m.Custom = custom
	m.hasCustom = true
}

func (m MetadataObject) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": 0}
	out["title"] = m.Title
	out["thumbnailUrl"] = m.ThumbnailURL
	if m.hasCustom || m.Custom != nil {
		if m.Custom == nil {
			out["custom"] = json.RawMessage("null")
		} else {
			out["custom"] = m.Custom
		}
	}
	return json.Marshal(out)
}

func (m *MetadataObject) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type         int             `json:"type"`
		Title        *string         `json:"title"`
		ThumbnailURL *string         `json:"thumbnailUrl"`
		Custom       json.RawMessage `json:"custom"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != 0 {
		return fmt.Errorf("fcast: unknown metadata type %d", raw.Type)
	}
	m.Title = raw.Title
	m.ThumbnailURL = raw.ThumbnailURL
	if raw.Custom != nil {
		m.Custom = raw.Custom
		m.hasCustom = true
	}
	return nil
}

// ContentType enumerates PlaylistContent's content kind. Playlist (0) is the
// only value currently defined.
type ContentType int

const ContentTypePlaylist ContentType = 0

// MediaItem describes a single playlist entry: the same fields as PlayMessage
// plus caching hints and a duration-display flag.
type MediaItem struct {
	Container    string            `json:"container"`
	URL          *string           `json:"url,omitempty"`
	Content      *string           `json:"content,omitempty"`
	Time         *float64          `json:"time,omitempty"`
	Volume       *float64          `json:"volume,omitempty"`
	Speed        *float64          `json:"speed,omitempty"`
	Cache        *bool             `json:"cache,omitempty"`
	ShowDuration *bool             `json:"showDuration,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Metadata     *MetadataObject   `json:"metadata,omitempty"`
}

// PlaylistContent is the body of a Load-as-playlist Play message.
type PlaylistContent struct {
	ContentType   ContentType     `json:"contentType"`
	Items         []MediaItem     `json:"items"`
	Offset        *uint64         `json:"offset,omitempty"`
	Volume        *float64        `json:"volume,omitempty"`
	Speed         *float64        `json:"speed,omitempty"`
	ForwardCache  *uint64         `json:"forwardCache,omitempty"`
	BackwardCache *uint64         `json:"backwardCache,omitempty"`
	Metadata      *MetadataObject `json:"metadata,omitempty"`
}

// PlaybackUpdateMessage is the v3 PlaybackUpdate event body: adds itemIndex
// and the Buffering state over v2.
type PlaybackUpdateMessage struct {
	GenerationTime uint64        `json:"generationTime"`
	State          PlaybackState `json:"state"`
	Time           *float64      `json:"time,omitempty"`
	Duration       *float64      `json:"duration,omitempty"`
	Speed          *float64      `json:"speed,omitempty"`
	ItemIndex      *uint64       `json:"itemIndex,omitempty"`
}

// InitialSenderMessage is sent by the sender immediately after a v3 Version
// handshake to identify itself.
type InitialSenderMessage struct {
	DisplayName *string `json:"displayName,omitempty"`
	AppName     *string `json:"appName,omitempty"`
	AppVersion  *string `json:"appVersion,omitempty"`
}

// LivestreamCapabilities advertises receiver support for live ingest.
type LivestreamCapabilities struct {
	Whep *bool `json:"whep,omitempty"`
}

// AVCapabilities groups audio/video-related capability advertisements.
type AVCapabilities struct {
	Livestream *LivestreamCapabilities `json:"livestream,omitempty"`
}

// ReceiverCapabilities is the top-level experimental capability envelope
// returned in InitialReceiverMessage.
type ReceiverCapabilities struct {
	AV *AVCapabilities `json:"av,omitempty"`
}

// InitialReceiverMessage is the receiver's reply to InitialSenderMessage.
type InitialReceiverMessage struct {
	DisplayName              *string               `json:"displayName,omitempty"`
	AppName                  *string               `json:"appName,omitempty"`
	AppVersion               *string               `json:"appVersion,omitempty"`
	PlayData                 *PlayMessage          `json:"playData,omitempty"`
	ExperimentalCapabilities *ReceiverCapabilities `json:"experimentalCapabilities,omitempty"`
}

// PlayUpdateMessage notifies the sender of a receiver-initiated change to
// what is playing (e.g. the receiver's own UI advanced the playlist).
type PlayUpdateMessage struct {
	GenerationTime *uint64      `json:"generationTime,omitempty"`
	PlayData       *PlayMessage `json:"playData,omitempty"`
}

// SetPlaylistItemMessage requests the receiver jump to a playlist index.
type SetPlaylistItemMessage struct {
	ItemIndex uint64 `json:"itemIndex"`
}

// ProtoKeyName is one of the five standard remote-control key identifiers
// used on the wire when subscribing to KeyDown/KeyUp events. Distinct from
// the device-level KeyName in device.go.
type ProtoKeyName string

const (
	ProtoKeyNameArrowLeft  ProtoKeyName = "ArrowLeft"
	ProtoKeyNameArrowRight ProtoKeyName = "ArrowRight"
	ProtoKeyNameArrowUp    ProtoKeyName = "ArrowUp"
	ProtoKeyNameArrowDown  ProtoKeyName = "ArrowDown"
	ProtoKeyNameEnter      ProtoKeyName = "Enter"
)

// AllProtoKeyNames returns every standard key name, in the order the
// reference implementation's KeyNames::all() emits them.
func AllProtoKeyNames() []string {
	return []string{
		string(ProtoKeyNameArrowLeft),
		string(ProtoKeyNameArrowRight),
		string(ProtoKeyNameArrowUp),
		string(ProtoKeyNameArrowDown),
		string(ProtoKeyNameEnter),
	}
}

// eventSubscribeType is the numeric tag of an EventSubscribeObject variant.
type eventSubscribeType int

const (
	eventSubscribeMediaItemStart eventSubscribeType = 0
	eventSubscribeMediaItemEnd   eventSubscribeType = 1
	eventSubscribeMediaItemChanged eventSubscribeType = 2
	eventSubscribeKeyDown        eventSubscribeType = 3
	eventSubscribeKeyUp          eventSubscribeType = 4
)

// EventSubscribeObject is a tagged union describing what a sender wants to
// be notified about: a bare media-lifecycle event, or a key event scoped to
// a set of key names.
type EventSubscribeObject struct {
	Type eventSubscribeType
	Keys []string // only meaningful for KeyDown/KeyUp
}

func EventSubscribeMediaItemStart() EventSubscribeObject {
	return EventSubscribeObject{Type: eventSubscribeMediaItemStart}
}

func EventSubscribeMediaItemEnd() EventSubscribeObject {
	return EventSubscribeObject{Type: eventSubscribeMediaItemEnd}
}

func EventSubscribeMediaItemChanged() EventSubscribeObject {
	return EventSubscribeObject{Type: eventSubscribeMediaItemChanged}
}

func EventSubscribeKeyDown(keys []string) EventSubscribeObject {
	return EventSubscribeObject{Type: eventSubscribeKeyDown, Keys: keys}
}

func EventSubscribeKeyUp(keys []string) EventSubscribeObject {
	return EventSubscribeObject{Type: eventSubscribeKeyUp, Keys: keys}
}

func (e EventSubscribeObject) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case eventSubscribeMediaItemStart, eventSubscribeMediaItemEnd, eventSubscribeMediaItemChanged:
		return json.Marshal(map[string]any{"type": int(e.Type)})
	case eventSubscribeKeyDown, eventSubscribeKeyUp:
		keys := e.Keys
		if keys == nil {
			keys = []string{}
		}
		return json.Marshal(map[string]any{"type": int(e.Type), "keys": keys})
	default:
		return nil, fmt.Errorf("fcast: unknown event subscribe type %d", e.Type)
	}
}

func (e *EventSubscribeObject) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type int      `json:"type"`
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch eventSubscribeType(raw.Type) {
	case eventSubscribeMediaItemStart, eventSubscribeMediaItemEnd, eventSubscribeMediaItemChanged,
		eventSubscribeKeyDown, eventSubscribeKeyUp:
		e.Type = eventSubscribeType(raw.Type)
		e.Keys = raw.Keys
		return nil
	default:
		return fmt.Errorf("fcast: unknown event type %d", raw.Type)
	}
}

// SubscribeEventMessage requests the receiver start emitting a class of
// events.
type SubscribeEventMessage struct {
	Type EventSubscribeObject `json:"-"`
}

func (m SubscribeEventMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Type) }
func (m *SubscribeEventMessage) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Type)
}

// UnsubscribeEventMessage requests the receiver stop emitting a class of
// events.
type UnsubscribeEventMessage struct {
	Type EventSubscribeObject `json:"-"`
}

func (m UnsubscribeEventMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Type) }
func (m *UnsubscribeEventMessage) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Type)
}

// EventType is the numeric tag of an EventObject variant.
type EventType int

const (
	EventTypeMediaItemStart  EventType = 0
	EventTypeMediaItemEnd    EventType = 1
	EventTypeMediaItemChange EventType = 2
	EventTypeKeyDown         EventType = 3
	EventTypeKeyUp           EventType = 4
)

// EventObject is a tagged union of the events a receiver can emit: a
// media-lifecycle event carrying the affected item, or a key event.
type EventObject struct {
	Type EventType

	// MediaItem is set for MediaItemStart/End/Change.
	MediaItem *MediaItem

	// Key fields are set for KeyDown/KeyUp.
	Key     string
	Repeat  bool
	Handled bool
}

func (e EventObject) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventTypeMediaItemStart, EventTypeMediaItemEnd, EventTypeMediaItemChange:
		item := e.MediaItem
		if item == nil {
			item = &MediaItem{}
		}
		return json.Marshal(map[string]any{"type": int(e.Type), "item": item})
	case EventTypeKeyDown, EventTypeKeyUp:
		return json.Marshal(map[string]any{
			"type":    int(e.Type),
			"key":     e.Key,
			"repeat":  e.Repeat,
			"handled": e.Handled,
		})
	default:
		return nil, fmt.Errorf("fcast: unknown event type %d", e.Type)
	}
}

func (e *EventObject) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    int        `json:"type"`
		Item    *MediaItem `json:"item"`
		Key     string     `json:"key"`
		Repeat  bool       `json:"repeat"`
		Handled bool       `json:"handled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch EventType(raw.Type) {
	case EventTypeMediaItemStart, EventTypeMediaItemEnd, EventTypeMediaItemChange:
		e.Type = EventType(raw.Type)
		e.MediaItem = raw.Item
	case EventTypeKeyDown, EventTypeKeyUp:
		e.Type = EventType(raw.Type)
		e.Key = raw.Key
		e.Repeat = raw.Repeat
		e.Handled = raw.Handled
	default:
		return fmt.Errorf("fcast: unknown event type %d", raw.Type)
	}
	return nil
}

// EventMessage wraps an emitted EventObject with the receiver's generation
// timestamp.
type EventMessage struct {
	GenerationTime uint64      `json:"generationTime"`
	Event          EventObject `json:"event"`
}
