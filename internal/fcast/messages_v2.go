package fcast

// PlaybackState enumerates the receiver's playback state, as reported on
// PlaybackUpdateMessage. Buffering only appears under v3.
type PlaybackState int

const (
	PlaybackStateIdle       PlaybackState = 0
	PlaybackStatePlaying    PlaybackState = 1
	PlaybackStatePaused     PlaybackState = 2
	PlaybackStateBuffering  PlaybackState = 3
)

// PlayMessageV2 is the v2 Play command body: no volume or metadata fields.
type PlayMessageV2 struct {
	Container string            `json:"container"`
	URL       *string           `json:"url,omitempty"`
	Content   *string           `json:"content,omitempty"`
	Time      *float64          `json:"time,omitempty"`
	Speed     *float64          `json:"speed,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// SeekMessage requests the receiver jump to an absolute playback time.
type SeekMessage struct {
	Time float64 `json:"time"`
}

// SetVolumeMessage requests a new output volume in [0, 1].
type SetVolumeMessage struct {
	Volume float64 `json:"volume"`
}

// SetSpeedMessage requests a new playback speed multiplier.
type SetSpeedMessage struct {
	Speed float64 `json:"speed"`
}

// PlaybackUpdateMessageV2 is the v2 PlaybackUpdate event body: no itemIndex.
type PlaybackUpdateMessageV2 struct {
	GenerationTime uint64        `json:"generationTime"`
	State          PlaybackState `json:"state"`
	Time           *float64      `json:"time,omitempty"`
	Duration       *float64      `json:"duration,omitempty"`
	Speed          *float64      `json:"speed,omitempty"`
}

// VolumeUpdateMessage reports the receiver's current volume. Shared
// unchanged between v2 and v3.
type VolumeUpdateMessage struct {
	GenerationTime uint64  `json:"generationTime"`
	Volume         float64 `json:"volume"`
}

// PlaybackErrorMessage reports a receiver-side playback failure.
type PlaybackErrorMessage struct {
	Message string `json:"message"`
}

// VersionMessage carries the negotiated protocol version during the
// handshake.
type VersionMessage struct {
	Version uint64 `json:"version"`
}
