// Package fcast implements the FCast wire protocol, session state machine,
// device controller, manual URL parsing, discovery adapter, and ranged file
// server used by a casting sender.
package fcast

import "fmt"

// Opcode identifies the payload carried by a Packet. The numeric values are
// shared between the legacy encrypted protocol (v1) and the v2/v3 protocol;
// codes 12-16 mean different things depending on Mode.
type Opcode uint8

const (
	OpcodeNone           Opcode = 0
	OpcodePlay           Opcode = 1
	OpcodePause          Opcode = 2
	OpcodeResume         Opcode = 3
	OpcodeStop           Opcode = 4
	OpcodeSeek           Opcode = 5
	OpcodePlaybackUpdate Opcode = 6
	OpcodeVolumeUpdate   Opcode = 7
	OpcodeSetVolume      Opcode = 8
	OpcodePlaybackError  Opcode = 9
	OpcodeSetSpeed       Opcode = 10
	OpcodeVersion        Opcode = 11

	// Legacy (v1 / encrypted) meaning of codes 12-16.
	OpcodeKeyExchange    Opcode = 12
	OpcodeEncrypted      Opcode = 13
	OpcodePing           Opcode = 14
	OpcodePong           Opcode = 15
	OpcodeStartEncryption Opcode = 16

	// v2/v3 meaning of codes 12-19. Ping/Pong are renumbered relative to the
	// legacy protocol; the overlap with codes 12-16 above is intentional and
	// is resolved at dispatch time by the Session's Mode.
	OpcodePingV3            Opcode = 12
	OpcodePongV3            Opcode = 13
	OpcodeInitial           Opcode = 14
	OpcodePlayUpdate        Opcode = 15
	OpcodeSetPlaylistItem   Opcode = 16
	OpcodeSubscribeEvent    Opcode = 17
	OpcodeUnsubscribeEvent  Opcode = 18
	OpcodeEvent             Opcode = 19
)

// Mode selects which generation of the protocol a Session speaks, and
// therefore how the overlapping opcode range (12-19) is interpreted.
type Mode int

const (
	// ModeV3 covers both v2 and v3 negotiated sessions: codes 12-19 carry
	// their v2/v3 meaning (Ping/Pong/Initial/PlayUpdate/SetPlaylistItem/
	// SubscribeEvent/UnsubscribeEvent/Event).
	ModeV3 Mode = iota
	// ModeLegacyEncrypted is used only when a Session is constructed in
	// encrypted mode and the negotiated version is 1: codes 12-16 carry
	// their legacy meaning (KeyExchange/Encrypted/Ping/Pong/StartEncryption).
	ModeLegacyEncrypted
)

// String returns the opcode's name under the given mode, for logging.
func (o Opcode) String(mode Mode) string {
	switch o {
	case OpcodeNone:
		return "None"
	case OpcodePlay:
		return "Play"
	case OpcodePause:
		return "Pause"
	case OpcodeResume:
		return "Resume"
	case OpcodeStop:
		return "Stop"
	case OpcodeSeek:
		return "Seek"
	case OpcodePlaybackUpdate:
		return "PlaybackUpdate"
	case OpcodeVolumeUpdate:
		return "VolumeUpdate"
	case OpcodeSetVolume:
		return "SetVolume"
	case OpcodePlaybackError:
		return "PlaybackError"
	case OpcodeSetSpeed:
		return "SetSpeed"
	case OpcodeVersion:
		return "Version"
	}
	if mode == ModeLegacyEncrypted {
		switch o {
		case OpcodeKeyExchange:
			return "KeyExchange"
		case OpcodeEncrypted:
			return "Encrypted"
		case OpcodePing:
			return "Ping"
		case OpcodePong:
			return "Pong"
		case OpcodeStartEncryption:
			return "StartEncryption"
		}
	} else {
		switch o {
		case OpcodePingV3:
			return "Ping"
		case OpcodePongV3:
			return "Pong"
		case OpcodeInitial:
			return "Initial"
		case OpcodePlayUpdate:
			return "PlayUpdate"
		case OpcodeSetPlaylistItem:
			return "SetPlaylistItem"
		case OpcodeSubscribeEvent:
			return "SubscribeEvent"
		case OpcodeUnsubscribeEvent:
			return "UnsubscribeEvent"
		case OpcodeEvent:
			return "Event"
		}
	}
	return fmt.Sprintf("Unknown(%d)", uint8(o))
}
