package fcast

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeEmptyPong(t *testing.T) {
	buf, err := Encode(OpcodePongV3, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x0D}
	if !bytes.Equal(buf, want) {
		t.Fatalf("Encode(Pong) = % x, want % x", buf, want)
	}
}

func TestParserWholePacketInOneFeed(t *testing.T) {
	p := NewParser()
	pkts, err := p.Feed([]byte{0x01, 0x00, 0x00, 0x00, 0x0D})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(pkts) != 1 || pkts[0].Opcode != OpcodePongV3 || len(pkts[0].Body) != 0 {
		t.Fatalf("got %+v", pkts)
	}
}

func TestParserSplitAcrossFeeds(t *testing.T) {
	p := NewParser()
	frame := []byte{0x01, 0x00, 0x00, 0x00, 0x0D}
	for i := 0; i < len(frame); i++ {
		pkts, err := p.Feed(frame[i : i+1])
		if err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
		if i < len(frame)-1 {
			if len(pkts) != 0 {
				t.Fatalf("unexpected packet before complete: %+v", pkts)
			}
		} else {
			if len(pkts) != 1 || pkts[0].Opcode != OpcodePongV3 {
				t.Fatalf("final feed got %+v", pkts)
			}
		}
	}
}

func TestParserMultiplePacketsInOneFeed(t *testing.T) {
	p := NewParser()
	body := []byte(`{"a":1}`)
	pkt1, err := Encode(OpcodePlay, body)
	if err != nil {
		t.Fatal(err)
	}
	pkt2, err := Encode(OpcodePongV3, nil)
	if err != nil {
		t.Fatal(err)
	}
	combined := append(append([]byte{}, pkt1...), pkt2...)

	pkts, err := p.Feed(combined)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(pkts) != 2 {
		t.Fatalf("want 2 packets, got %d (%+v)", len(pkts), pkts)
	}
	if pkts[0].Opcode != OpcodePlay || !bytes.Equal(pkts[0].Body, body) {
		t.Fatalf("first packet = %+v", pkts[0])
	}
	if pkts[1].Opcode != OpcodePongV3 || len(pkts[1].Body) != 0 {
		t.Fatalf("second packet = %+v", pkts[1])
	}
}

func TestParserPacketLeftoverCarriesIntoLength(t *testing.T) {
	p := NewParser()
	pkt1, err := Encode(OpcodePlay, []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	pkt2, err := Encode(OpcodePongV3, nil)
	if err != nil {
		t.Fatal(err)
	}
	combined := append(append([]byte{}, pkt1...), pkt2...)

	// Feed the first packet plus just the length prefix of the second in one
	// call, forcing the parser to transition WaitingForData -> WaitingForLength
	// -> WaitingForData entirely within a single Feed.
	split := len(pkt1) + LengthBytes
	pkts, err := p.Feed(combined[:split])
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(pkts) != 1 || pkts[0].Opcode != OpcodePlay {
		t.Fatalf("first feed = %+v", pkts)
	}

	pkts, err = p.Feed(combined[split:])
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(pkts) != 1 || pkts[0].Opcode != OpcodePongV3 {
		t.Fatalf("second feed = %+v", pkts)
	}
}

func TestOversizedPacketIsFatal(t *testing.T) {
	p := NewParser()
	lengthBuf := []byte{0x10, 0x7d, 0x00, 0x00} // 32016, > 32000
	_, err := p.Feed(lengthBuf)
	if err == nil {
		t.Fatal("expected oversized packet error")
	}
	var oversized *ErrOversizedPacket
	if !errors.As(err, &oversized) {
		t.Fatalf("expected ErrOversizedPacket, got %T: %v", err, err)
	}

	// The parser stays disconnected: any further feed keeps failing.
	_, err = p.Feed([]byte{0x00})
	if err == nil {
		t.Fatal("expected parser to remain disconnected")
	}
}

func TestEncodeRejectsOversizedBody(t *testing.T) {
	body := make([]byte, MaxPacketLength)
	if _, err := Encode(OpcodePlay, body); err == nil {
		t.Fatal("expected Encode to reject an oversized body")
	}
}
