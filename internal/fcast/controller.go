package fcast

import (
	"log"
	"sync"
	"time"

	"github.com/petervdpas/fcast-go/internal/util"
)

// eventHistoryCapacity bounds how many recent playback updates a Controller
// retains for inspection via History.
const eventHistoryCapacity = 32

// featureSet describes which optional features a negotiated session
// supports, derived from the protocol version.
func featureSet(version uint64) map[DeviceFeature]bool {
	base := map[DeviceFeature]bool{
		FeatureSetVolume:   false,
		FeatureSetSpeed:    true,
		FeatureLoadContent: true,
		FeatureLoadURL:     true,
		FeatureLoadImage:   true,
	}
	if version >= 3 {
		base[FeatureSetVolume] = true
		base[FeatureKeyEventSubscription] = true
		base[FeatureMediaEventSubscription] = true
		base[FeatureLoadPlaylist] = true
		base[FeaturePlaylistNextAndPrevious] = true
		base[FeatureSetPlaylistItemIndex] = true
	}
	return base
}

// command is a serialized request to the Controller's single worker
// goroutine, guaranteeing commands against one device are applied in
// submission order even while a reconnect is in progress.
type command struct {
	run  func(*Session) error
	done chan error
}

// Controller is the per-device worker: it owns the connect-with-retry
// lifecycle, serializes commands through a single goroutine, and forwards
// session events to the caller-supplied EventHandler.
type Controller struct {
	info    DeviceInfo
	handler EventHandler

	reconnectInterval time.Duration
	connectTimeout    time.Duration

	mu          sync.Mutex
	session     *Session
	features    map[DeviceFeature]bool
	started     bool
	playlistIdx uint64

	history *util.RingBuffer[PlaybackState]

	cmdCh  chan command
	stopCh chan struct{}
}

// NewController creates a worker for the given device. Call Start to begin
// connecting.
func NewController(info DeviceInfo, handler EventHandler, reconnectInterval, connectTimeout time.Duration) *Controller {
	if handler == nil {
		handler = noopHandler{}
	}
	return &Controller{
		info:              info,
		handler:           handler,
		reconnectInterval: reconnectInterval,
		connectTimeout:    connectTimeout,
		history:           util.NewRingBuffer[PlaybackState](eventHistoryCapacity),
		cmdCh:             make(chan command, 32),
		stopCh:            make(chan struct{}),
	}
}

// History returns the most recent playback state transitions seen on this
// device, oldest first, capped at eventHistoryCapacity.
func (c *Controller) History() []PlaybackState {
	return c.history.Snapshot()
}

// historyRecorder wraps the caller's EventHandler so every
// PlaybackStateChanged also lands in the controller's bounded history
// before being forwarded.
type historyRecorder struct {
	EventHandler
	history *util.RingBuffer[PlaybackState]
}

func (h historyRecorder) OnPlaybackStateChanged(state PlaybackState) {
	h.history.Push(state)
	h.EventHandler.OnPlaybackStateChanged(state)
}

// noopHandler discards every notification; used when a Controller is
// created without a caller-supplied EventHandler.
type noopHandler struct{}

func (noopHandler) OnConnectionStateChanged(ConnectionState) {}
func (noopHandler) OnVolumeChanged(float64)                  {}
func (noopHandler) OnTimeChanged(float64)                    {}
func (noopHandler) OnPlaybackStateChanged(PlaybackState)     {}
func (noopHandler) OnDurationChanged(float64)                {}
func (noopHandler) OnSpeedChanged(float64)                   {}
func (noopHandler) OnSourceChanged(Source)                   {}
func (noopHandler) OnKeyEvent(KeyEvent)                      {}
func (noopHandler) OnMediaEvent(MediaEvent)                  {}
func (noopHandler) OnPlaybackError(string)                   {}

// Start spawns the worker goroutine. Calling Start twice returns
// ErrDeviceAlreadyStarted.
func (c *Controller) Start(appName, appVersion string) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrDeviceAlreadyStarted
	}
	if len(c.info.Addresses) == 0 {
		c.mu.Unlock()
		return ErrMissingAddresses
	}
	c.started = true
	c.mu.Unlock()

	go c.run(appName, appVersion)
	return nil
}

func (c *Controller) run(appName, appVersion string) {
	for {
		select {
		case <-c.stopCh:
			c.handler.OnConnectionStateChanged(ConnectionStateDisconnected)
			return
		default:
		}

		c.handler.OnConnectionStateChanged(ConnectionStateConnecting)
		sess, err := c.connect(appName, appVersion)
		if err != nil {
			log.Printf("CONTROLLER [%s]: connect failed: %v", c.info.Name, err)
			c.handler.OnConnectionStateChanged(ConnectionStateReconnecting)
			select {
			case <-c.stopCh:
				c.handler.OnConnectionStateChanged(ConnectionStateDisconnected)
				return
			case <-time.After(c.reconnectInterval):
			}
			continue
		}

		c.mu.Lock()
		c.session = sess
		c.features = featureSet(sess.Version())
		c.mu.Unlock()
		c.handler.OnConnectionStateChanged(ConnectionStateConnected)

		c.serve(sess)

		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()

		select {
		case <-c.stopCh:
			c.handler.OnConnectionStateChanged(ConnectionStateDisconnected)
			return
		case <-time.After(c.reconnectInterval):
			c.handler.OnConnectionStateChanged(ConnectionStateReconnecting)
		}
	}
}

func (c *Controller) connect(appName, appVersion string) (*Session, error) {
	addr, err := c.info.Addr()
	if err != nil {
		return nil, err
	}
	t, err := DialTCP(addr, c.connectTimeout)
	if err != nil {
		return nil, err
	}
	sess := NewSession(t, ModeV3, historyRecorder{EventHandler: c.handler, history: c.history})
	if err := sess.Connect(appName, appVersion); err != nil {
		_ = t.Shutdown()
		return nil, err
	}
	return sess, nil
}

// serve drains queued commands against the live session until it
// disconnects or Disconnect is called.
func (c *Controller) serve(sess *Session) {
	for {
		select {
		case <-c.stopCh:
			_ = sess.Close()
			return
		case <-sess.closeCh:
			return
		case cmd := <-c.cmdCh:
			cmd.done <- cmd.run(sess)
		}
	}
}

// submit runs fn against the current session, or returns
// ErrFailedToSendCommand if no session is connected.
func (c *Controller) submit(fn func(*Session) error) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrFailedToSendCommand
	}
	cmd := command{run: fn, done: make(chan error, 1)}
	select {
	case c.cmdCh <- cmd:
	case <-c.stopCh:
		return ErrFailedToSendCommand
	}
	return <-cmd.done
}

// SupportsFeature reports whether the currently-negotiated session supports
// the given feature.
func (c *Controller) SupportsFeature(f DeviceFeature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.features == nil {
		return false
	}
	return c.features[f]
}

// Load starts playback of req, dispatching to the appropriate Play/Playlist
// wire shape.
func (c *Controller) Load(req LoadRequest) error {
	return c.submit(func(s *Session) error {
		switch req.Kind {
		case LoadRequestPlaylist:
			if !c.SupportsFeature(FeatureLoadPlaylist) {
				return ErrUnsupportedFeature
			}
			return s.sendMessage(OpcodePlay, playlistFromItems(req.Items))
		default:
			return s.SendPlay(playMessageFromRequest(req))
		}
	})
}

func playMessageFromRequest(req LoadRequest) PlayMessage {
	msg := PlayMessage{
		Container: req.ContentType,
		Speed:     req.Speed,
		Volume:    req.Volume,
		Headers:   req.RequestHeaders,
		Metadata:  req.Metadata.toWire(),
	}
	if req.URL != "" {
		u := req.URL
		msg.URL = &u
	}
	if req.Content != "" {
		c := req.Content
		msg.Content = &c
	}
	msg.Time = req.ResumePosition
	return msg
}

func playlistFromItems(items []PlaylistItem) PlaylistContent {
	out := make([]MediaItem, len(items))
	for i, item := range items {
		mi := MediaItem{
			Container: item.ContentType,
			Headers:   item.RequestHeaders,
			Metadata:  item.Metadata.toWire(),
		}
		if item.URL != "" {
			u := item.URL
			mi.URL = &u
		}
		t := item.ResumePosition
		mi.Time = &t
		sp := item.Speed
		mi.Speed = &sp
		vol := item.Volume
		mi.Volume = &vol
		out[i] = mi
	}
	return PlaylistContent{ContentType: ContentTypePlaylist, Items: out}
}

// Seek requests an absolute playback time.
func (c *Controller) Seek(time float64) error {
	return c.submit(func(s *Session) error { return s.SendSeek(time) })
}

// PausePlayback pauses the active item.
func (c *Controller) PausePlayback() error {
	return c.submit(func(s *Session) error { return s.SendPause() })
}

// ResumePlayback resumes a paused item.
func (c *Controller) ResumePlayback() error {
	return c.submit(func(s *Session) error { return s.SendResume() })
}

// StopPlayback halts playback.
func (c *Controller) StopPlayback() error {
	return c.submit(func(s *Session) error { return s.SendStop() })
}

// ChangeVolume sets output volume in [0,1]. Requires FeatureSetVolume.
func (c *Controller) ChangeVolume(volume float64) error {
	if !c.SupportsFeature(FeatureSetVolume) {
		return ErrUnsupportedFeature
	}
	return c.submit(func(s *Session) error { return s.SendSetVolume(volume) })
}

// ChangeSpeed sets playback speed multiplier.
func (c *Controller) ChangeSpeed(speed float64) error {
	return c.submit(func(s *Session) error { return s.SendSetSpeed(speed) })
}

// SetPlaylistItemIndex jumps to a playlist entry. Requires
// FeatureSetPlaylistItemIndex.
func (c *Controller) SetPlaylistItemIndex(index uint64) error {
	if !c.SupportsFeature(FeatureSetPlaylistItemIndex) {
		return ErrUnsupportedFeature
	}
	c.mu.Lock()
	c.playlistIdx = index
	c.mu.Unlock()
	return c.submit(func(s *Session) error { return s.SendSetPlaylistItem(index) })
}

// PlaylistItemNext advances to the next playlist entry.
func (c *Controller) PlaylistItemNext() error {
	if !c.SupportsFeature(FeaturePlaylistNextAndPrevious) {
		return ErrUnsupportedFeature
	}
	c.mu.Lock()
	c.playlistIdx++
	idx := c.playlistIdx
	c.mu.Unlock()
	return c.submit(func(s *Session) error { return s.SendSetPlaylistItem(idx) })
}

// PlaylistItemPrevious goes back to the previous playlist entry.
func (c *Controller) PlaylistItemPrevious() error {
	if !c.SupportsFeature(FeaturePlaylistNextAndPrevious) {
		return ErrUnsupportedFeature
	}
	c.mu.Lock()
	if c.playlistIdx > 0 {
		c.playlistIdx--
	}
	idx := c.playlistIdx
	c.mu.Unlock()
	return c.submit(func(s *Session) error { return s.SendSetPlaylistItem(idx) })
}

// Subscribe registers for a class of events. Requires the matching
// Key/MediaEventSubscription feature.
func (c *Controller) Subscribe(sub EventSubscription) error {
	switch sub.Type.Type {
	case eventSubscribeKeyDown, eventSubscribeKeyUp:
		if !c.SupportsFeature(FeatureKeyEventSubscription) {
			return ErrUnsupportedSubscription
		}
	default:
		if !c.SupportsFeature(FeatureMediaEventSubscription) {
			return ErrUnsupportedSubscription
		}
	}
	return c.submit(func(s *Session) error { return s.Subscribe(sub.Type) })
}

// Unsubscribe removes a previously-registered subscription.
func (c *Controller) Unsubscribe(sub EventSubscription) error {
	return c.submit(func(s *Session) error { return s.Unsubscribe(sub.Type) })
}

// Disconnect stops the worker and closes any active session.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	close(c.stopCh)
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
}

// IsReady reports whether a session is currently connected.
func (c *Controller) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}
