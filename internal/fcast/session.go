package fcast

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Session drives one FCast connection: handshake, heartbeat, subscription
// tracking, and opcode dispatch. A Session is created per Transport and
// discarded on disconnect; the device controller is responsible for
// reconnecting.
type Session struct {
	mu sync.Mutex

	transport Transport
	parser    *Parser
	handler   EventHandler

	// mode resolves the ambiguity in opcodes 12-19 (spec.md §9 open
	// question): legacy encrypted sessions interpret them as
	// KeyExchange/Encrypted/Ping/Pong/StartEncryption only when the session
	// was constructed in encrypted mode and the negotiated version is 1.
	mode    Mode
	version uint64

	crypto *EncryptedChannel

	subscriptions map[string]EventSubscribeObject

	// last holds the most recently emitted value for each change-gated
	// event kind, so handlePacket can drop updates that repeat a value
	// the handler has already seen.
	last lastObserved

	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

// lastObserved tracks the last value reported for each decomposed event
// kind, plus whether any value has been reported yet — a zero value is
// indistinguishable from "never seen" otherwise.
type lastObserved struct {
	havePlaybackState bool
	playbackState     PlaybackState
	haveTime          bool
	time              float64
	haveDuration      bool
	duration          float64
	haveSpeed         bool
	speed             float64

	haveVolume    bool
	volume        float64
	haveVolumeGen bool
	volumeGenTime uint64

	haveSource bool
	source     Source
}

// NewSession wraps a transport in a fresh, unconnected Session.
func NewSession(transport Transport, mode Mode, handler EventHandler) *Session {
	s := &Session{
		transport:     transport,
		parser:        NewParser(),
		handler:       handler,
		mode:          mode,
		subscriptions: make(map[string]EventSubscribeObject),
		closeCh:       make(chan struct{}),
	}
	if mode == ModeLegacyEncrypted {
		ch, err := NewEncryptedChannel()
		if err != nil {
			log.Printf("SESSION: failed to initialize encrypted channel: %v", err)
		}
		s.crypto = ch
	}
	return s
}

// Connect performs the v2/v3 handshake: send Version(3), read the peer's
// Version reply, and — if it agrees on 3 — exchange Initial messages.
// Mirrors the reference sender's connect(): the negotiated version decides
// whether subsequent opcodes 14-19 carry their v3 meaning.
func (s *Session) Connect(appName, appVersion string) error {
	if err := s.sendMessage(OpcodeVersion, VersionMessage{Version: 3}); err != nil {
		return fmt.Errorf("fcast: send version: %w", err)
	}
	pkt, err := s.readPacket()
	if err != nil {
		return fmt.Errorf("fcast: read version reply: %w", err)
	}
	if pkt.Opcode != OpcodeVersion {
		return fmt.Errorf("fcast: expected Version reply, got opcode %d", pkt.Opcode)
	}
	var vmsg VersionMessage
	if err := json.Unmarshal(pkt.Body, &vmsg); err != nil {
		return fmt.Errorf("fcast: parse version reply: %w", err)
	}

	s.mu.Lock()
	s.version = vmsg.Version
	s.mu.Unlock()

	if vmsg.Version == 3 {
		name := appName
		ver := appVersion
		initial := InitialSenderMessage{AppName: &name, AppVersion: &ver}
		if err := s.sendMessage(OpcodeInitial, initial); err != nil {
			return fmt.Errorf("fcast: send initial: %w", err)
		}
		pkt, err := s.readPacket()
		if err != nil {
			return fmt.Errorf("fcast: read initial reply: %w", err)
		}
		if pkt.Opcode != OpcodeInitial {
			return fmt.Errorf("fcast: expected Initial reply, got opcode %d", pkt.Opcode)
		}
		var initReply InitialReceiverMessage
		if err := json.Unmarshal(pkt.Body, &initReply); err != nil {
			return fmt.Errorf("fcast: parse initial reply: %w", err)
		}
	}

	go s.readLoop()

	if s.crypto != nil {
		// The reference receive_loop sends its own public key first, as the
		// initiator, rather than waiting for the peer's KeyExchange.
		pub, err := s.crypto.LocalPublicKeyBase64()
		if err != nil {
			return fmt.Errorf("fcast: derive local public key: %w", err)
		}
		s.crypto.BeginExchange()
		if err := s.sendMessage(OpcodeKeyExchange, KeyExchangeMessage{Version: 1, PublicKey: pub}); err != nil {
			return fmt.Errorf("fcast: send key exchange: %w", err)
		}
	}

	return nil
}

// Version returns the negotiated protocol version (1, 2, or 3).
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Session) readPacket() (Packet, error) {
	for {
		data, err := s.transport.Read()
		if err != nil {
			return Packet{}, err
		}
		pkts, err := s.parser.Feed(data)
		if err != nil {
			_ = s.transport.Shutdown()
			return Packet{}, err
		}
		if len(pkts) > 0 {
			return pkts[0], nil
		}
	}
}

func (s *Session) readLoop() {
	for {
		data, err := s.transport.Read()
		if err != nil {
			s.disconnect(err)
			return
		}
		pkts, err := s.parser.Feed(data)
		if err != nil {
			_ = s.transport.Shutdown()
			s.disconnect(err)
			return
		}
		for _, pkt := range pkts {
			s.handlePacket(pkt)
		}
	}
}

func (s *Session) disconnect(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closeCh) })
	if err != nil {
		log.Printf("SESSION: read loop stopped: %v", err)
	}
}

// Close shuts down the transport. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closeCh) })
	if already {
		return nil
	}
	return s.transport.Shutdown()
}

// handlePacket is the opcode dispatch table. Legacy encrypted meaning of
// 12-16 applies only under ModeLegacyEncrypted with version==1; otherwise
// the v2/v3 meaning applies.
func (s *Session) handlePacket(pkt Packet) {
	if s.mode == ModeLegacyEncrypted && s.Version() == 1 {
		s.handleLegacyPacket(pkt)
		return
	}
	switch pkt.Opcode {
	case OpcodePlaybackUpdate:
		var msg PlaybackUpdateMessage
		if s.Version() >= 3 {
			if err := json.Unmarshal(pkt.Body, &msg); err != nil {
				log.Printf("SESSION: bad PlaybackUpdate: %v", err)
				return
			}
		} else {
			var v2 PlaybackUpdateMessageV2
			if err := json.Unmarshal(pkt.Body, &v2); err != nil {
				log.Printf("SESSION: bad PlaybackUpdate: %v", err)
				return
			}
			msg = PlaybackUpdateMessage{
				GenerationTime: v2.GenerationTime,
				State:          v2.State,
				Time:           v2.Time,
				Duration:       v2.Duration,
				Speed:          v2.Speed,
			}
		}
		s.handlePlaybackUpdate(msg)
	case OpcodeVolumeUpdate:
		var msg VolumeUpdateMessage
		if err := json.Unmarshal(pkt.Body, &msg); err != nil {
			log.Printf("SESSION: bad VolumeUpdate: %v", err)
			return
		}
		s.handleVolumeUpdate(msg)
	case OpcodePlaybackError:
		var msg PlaybackErrorMessage
		if err := json.Unmarshal(pkt.Body, &msg); err != nil {
			log.Printf("SESSION: bad PlaybackError: %v", err)
			return
		}
		if s.handler != nil {
			s.handler.OnPlaybackError(msg.Message)
		}
	case OpcodeVersion:
		log.Printf("SESSION: unexpected Version packet outside handshake")
	case OpcodePingV3:
		if err := s.sendEmpty(OpcodePongV3); err != nil {
			log.Printf("SESSION: reply to ping: %v", err)
		}
	case OpcodePongV3:
		// heartbeat acknowledgement, nothing to do
	case OpcodePlayUpdate:
		var msg PlayUpdateMessage
		if err := json.Unmarshal(pkt.Body, &msg); err != nil {
			log.Printf("SESSION: bad PlayUpdate: %v", err)
			return
		}
		s.handlePlayUpdate(msg)
	case OpcodeEvent:
		var msg EventMessage
		if err := json.Unmarshal(pkt.Body, &msg); err != nil {
			log.Printf("SESSION: bad Event: %v", err)
			return
		}
		s.handleEvent(msg)
	default:
		log.Printf("SESSION: unhandled opcode %d", pkt.Opcode)
	}
}

// handlePlaybackUpdate decomposes a PlaybackUpdate into its constituent
// fields and emits a change event for each one that differs from the last
// value reported, per the reference sender's changed! comparison.
func (s *Session) handlePlaybackUpdate(msg PlaybackUpdateMessage) {
	if s.handler == nil {
		return
	}
	s.mu.Lock()
	var (
		emitState             bool
		emitTime              bool
		emitDuration          bool
		emitSpeed             bool
		state                 = msg.State
		t, duration, speed    float64
	)
	if !s.last.havePlaybackState || s.last.playbackState != msg.State {
		s.last.havePlaybackState = true
		s.last.playbackState = msg.State
		emitState = true
	}
	if msg.Time != nil && (!s.last.haveTime || s.last.time != *msg.Time) {
		s.last.haveTime = true
		s.last.time = *msg.Time
		t = *msg.Time
		emitTime = true
	}
	if msg.Duration != nil && (!s.last.haveDuration || s.last.duration != *msg.Duration) {
		s.last.haveDuration = true
		s.last.duration = *msg.Duration
		duration = *msg.Duration
		emitDuration = true
	}
	if msg.Speed != nil && (!s.last.haveSpeed || s.last.speed != *msg.Speed) {
		s.last.haveSpeed = true
		s.last.speed = *msg.Speed
		speed = *msg.Speed
		emitSpeed = true
	}
	s.mu.Unlock()

	if emitState {
		s.handler.OnPlaybackStateChanged(state)
	}
	if emitTime {
		s.handler.OnTimeChanged(t)
	}
	if emitDuration {
		s.handler.OnDurationChanged(duration)
	}
	if emitSpeed {
		s.handler.OnSpeedChanged(speed)
	}
}

// handleVolumeUpdate drops updates that are older than the last accepted
// generationTime, then emits VolumeChanged only if the volume itself moved.
func (s *Session) handleVolumeUpdate(msg VolumeUpdateMessage) {
	s.mu.Lock()
	if s.last.haveVolumeGen && msg.GenerationTime < s.last.volumeGenTime {
		s.mu.Unlock()
		return
	}
	s.last.haveVolumeGen = true
	s.last.volumeGenTime = msg.GenerationTime
	changed := !s.last.haveVolume || s.last.volume != msg.Volume
	if changed {
		s.last.haveVolume = true
		s.last.volume = msg.Volume
	}
	s.mu.Unlock()

	if changed && s.handler != nil {
		s.handler.OnVolumeChanged(msg.Volume)
	}
}

// handlePlayUpdate compares the receiver-reported play source against the
// last one observed (whether via an earlier PlayUpdate or our own SendPlay)
// and emits SourceChanged only if it moved.
func (s *Session) handlePlayUpdate(msg PlayUpdateMessage) {
	src := sourceFromPlayMessage(msg.PlayData)
	s.mu.Lock()
	changed := !s.last.haveSource || s.last.source != src
	if changed {
		s.last.haveSource = true
		s.last.source = src
	}
	s.mu.Unlock()

	if changed && s.handler != nil {
		s.handler.OnSourceChanged(src)
	}
}

// handleEvent maps a v3 EventObject to the matching KeyEvent or MediaEvent
// callback.
func (s *Session) handleEvent(msg EventMessage) {
	if s.handler == nil {
		return
	}
	switch msg.Event.Type {
	case EventTypeKeyDown, EventTypeKeyUp:
		s.handler.OnKeyEvent(KeyEvent{
			Key:     msg.Event.Key,
			Repeat:  msg.Event.Repeat,
			Handled: msg.Event.Handled,
			Up:      msg.Event.Type == EventTypeKeyUp,
		})
	case EventTypeMediaItemStart, EventTypeMediaItemEnd, EventTypeMediaItemChange:
		var kind MediaItemEventType
		switch msg.Event.Type {
		case EventTypeMediaItemEnd:
			kind = MediaItemEventEnd
		case EventTypeMediaItemChange:
			kind = MediaItemEventChanged
		default:
			kind = MediaItemEventStart
		}
		s.handler.OnMediaEvent(MediaEvent{Type: kind, Item: msg.Event.MediaItem})
	default:
		log.Printf("SESSION: unhandled event type %d", msg.Event.Type)
	}
}

// handleLegacyPacket dispatches the encrypted-channel opcodes (12-16,
// legacy meaning), replicating the reference implementation's KeyExchange /
// Encrypted / Ping / StartEncryption handling.
func (s *Session) handleLegacyPacket(pkt Packet) {
	switch pkt.Opcode {
	case OpcodeKeyExchange:
		var msg KeyExchangeMessage
		if err := json.Unmarshal(pkt.Body, &msg); err != nil {
			log.Printf("SESSION: bad KeyExchange: %v", err)
			return
		}
		if s.crypto == nil {
			return
		}
		if err := s.crypto.CompleteExchange(msg.PublicKey); err != nil {
			log.Printf("SESSION: compute shared secret: %v", err)
			return
		}
		if err := s.sendEmpty(OpcodeStartEncryption); err != nil {
			log.Printf("SESSION: send StartEncryption: %v", err)
			return
		}
		for _, enc := range s.crypto.DrainIncoming() {
			s.decryptAndHandle(enc)
		}
	case OpcodeEncrypted:
		var enc EncryptedMessage
		if err := json.Unmarshal(pkt.Body, &enc); err != nil {
			log.Printf("SESSION: bad Encrypted: %v", err)
			return
		}
		if s.crypto != nil && s.crypto.Ready() {
			s.decryptAndHandle(enc)
		} else if s.crypto != nil {
			s.crypto.QueueIncoming(enc)
		}
	case OpcodePing:
		if err := s.sendEmpty(OpcodePong); err != nil {
			log.Printf("SESSION: reply to ping: %v", err)
		}
	case OpcodeStartEncryption:
		if s.crypto == nil {
			return
		}
		if err := s.crypto.MarkStarted(); err != nil {
			log.Printf("SESSION: %v", err)
			return
		}
		for _, dec := range s.crypto.DrainOutgoing() {
			enc, err := s.crypto.Encrypt(dec)
			if err != nil {
				log.Printf("SESSION: encrypt queued message: %v", err)
				continue
			}
			if err := s.sendMessage(OpcodeEncrypted, enc); err != nil {
				log.Printf("SESSION: flush queued message: %v", err)
			}
		}
	default:
		log.Printf("SESSION: unhandled legacy opcode %d", pkt.Opcode)
	}
}

func (s *Session) decryptAndHandle(enc EncryptedMessage) {
	dec, err := s.crypto.Decrypt(enc)
	if err != nil {
		log.Printf("SESSION: decrypt: %v", err)
		return
	}
	var body []byte
	if dec.Message != nil {
		body = []byte(*dec.Message)
	}
	s.handlePacket(Packet{Opcode: Opcode(dec.Opcode), Body: body})
}

// sendMessage JSON-encodes v and sends it, applying the encryption-aware
// send policy: wrap in Encrypted once StartEncryption has completed, queue
// while a key exchange is outstanding, otherwise send plaintext.
func (s *Session) sendMessage(opcode Opcode, v any) error {
	if s.crypto != nil && opcode != OpcodeEncrypted && opcode != OpcodeKeyExchange && opcode != OpcodeStartEncryption {
		body, err := json.Marshal(v)
		if err != nil {
			return err
		}
		bodyStr := string(body)
		dec := DecryptedMessage{Opcode: uint64(opcode), Message: &bodyStr}
		if s.crypto.Started() {
			enc, err := s.crypto.Encrypt(dec)
			if err != nil {
				return err
			}
			return s.sendMessage(OpcodeEncrypted, enc)
		}
		if s.crypto.waiting {
			s.crypto.QueueOutgoing(dec)
			return nil
		}
	}
	frame, err := EncodeMessage(opcode, v)
	if err != nil {
		return err
	}
	return s.transport.Write(frame)
}

func (s *Session) sendEmpty(opcode Opcode) error {
	return s.sendMessage(opcode, nil)
}

// subscriptionKey gives a stable string key for deduplicating subscriptions
// under structural equality.
func subscriptionKey(obj EventSubscribeObject) string {
	b, _ := json.Marshal(obj)
	return string(b)
}

// Subscribe registers interest in a class of events. Only valid for v3
// sessions.
func (s *Session) Subscribe(obj EventSubscribeObject) error {
	if s.Version() < 3 {
		return fmt.Errorf("fcast: subscriptions require protocol v3")
	}
	key := subscriptionKey(obj)
	s.mu.Lock()
	if _, ok := s.subscriptions[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.subscriptions[key] = obj
	s.mu.Unlock()
	return s.sendMessage(OpcodeSubscribeEvent, SubscribeEventMessage{Type: obj})
}

// Unsubscribe removes a previously-registered subscription.
func (s *Session) Unsubscribe(obj EventSubscribeObject) error {
	key := subscriptionKey(obj)
	s.mu.Lock()
	if _, ok := s.subscriptions[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.subscriptions, key)
	s.mu.Unlock()
	return s.sendMessage(OpcodeUnsubscribeEvent, UnsubscribeEventMessage{Type: obj})
}

// SendPlay sends a Play command, shaping the body per the negotiated
// version: v2 bodies omit volume and metadata.
func (s *Session) SendPlay(msg PlayMessage) error {
	s.mu.Lock()
	s.last.haveSource = true
	s.last.source = sourceFromPlayMessage(&msg)
	s.mu.Unlock()

	if s.Version() >= 3 {
		return s.sendMessage(OpcodePlay, msg)
	}
	v2 := PlayMessageV2{
		Container: msg.Container,
		URL:       msg.URL,
		Content:   msg.Content,
		Time:      msg.Time,
		Speed:     msg.Speed,
		Headers:   msg.Headers,
	}
	return s.sendMessage(OpcodePlay, v2)
}

func (s *Session) SendPause() error  { return s.sendEmpty(OpcodePause) }
func (s *Session) SendResume() error { return s.sendEmpty(OpcodeResume) }
func (s *Session) SendStop() error   { return s.sendEmpty(OpcodeStop) }

func (s *Session) SendSeek(time float64) error {
	return s.sendMessage(OpcodeSeek, SeekMessage{Time: time})
}

func (s *Session) SendSetVolume(volume float64) error {
	return s.sendMessage(OpcodeSetVolume, SetVolumeMessage{Volume: volume})
}

func (s *Session) SendSetSpeed(speed float64) error {
	return s.sendMessage(OpcodeSetSpeed, SetSpeedMessage{Speed: speed})
}

func (s *Session) SendSetPlaylistItem(index uint64) error {
	return s.sendMessage(OpcodeSetPlaylistItem, SetPlaylistItemMessage{ItemIndex: index})
}
