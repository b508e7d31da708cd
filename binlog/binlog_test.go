package binlog

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func packFrame(addr uint32, typ uint8, body []byte) []byte {
	out := make([]byte, telemHdrLen+len(body))
	binary.LittleEndian.PutUint16(out[0:2], telemMagic)
	binary.LittleEndian.PutUint32(out[2:6], addr)
	out[6] = typ
	binary.LittleEndian.PutUint16(out[7:9], uint16(len(body)))
	copy(out[telemHdrLen:], body)
	return out
}

func TestWriterParserRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.pcap")

	pw, err := NewPcapWriter(path)
	if err != nil {
		t.Fatalf("NewPcapWriter failed: %v", err)
	}

	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 4444}
	pkt := append(
		packFrame(0xB50AC, 0x50, []byte{1, 2, 3, 4}),
		packFrame(0xB50AC, 0x52, []byte{9, 9})...,
	)
	if err := pw.WritePacket(FlagTelemetry, addr, pkt); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}
	if err := pw.WritePacket(FlagCycle, nil, []byte("setpnts: 12,\r\n")); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	p := NewParser(path)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// Only the telemetry record carries frames; the cycle record is an
	// ASCII line and yields no frames.
	if len(p.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(p.Events))
	}
	evt := p.Events[0]
	if evt.Flag != FlagTelemetry {
		t.Errorf("flag = %d, want %d", evt.Flag, FlagTelemetry)
	}
	if len(evt.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(evt.Frames))
	}
	if evt.Frames[0].Addr != 0xB50AC || evt.Frames[0].Type != 0x50 {
		t.Errorf("frame 0 = %+v", evt.Frames[0])
	}
	if string(evt.Frames[0].Body) != "\x01\x02\x03\x04" {
		t.Errorf("frame 0 body = %v", evt.Frames[0].Body)
	}
	if evt.Frames[1].Type != 0x52 || len(evt.Frames[1].Body) != 2 {
		t.Errorf("frame 1 = %+v", evt.Frames[1])
	}
	if evt.Timestamp == 0 {
		t.Error("timestamp not recorded")
	}
}

func TestParserRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-log")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser(path)
	if err := p.Parse(); err == nil {
		t.Error("expected error for bad pcap magic")
	}
}

func TestParserMissingFile(t *testing.T) {
	p := NewParser("does-not-exist.pcap")
	if err := p.Parse(); err == nil {
		t.Error("expected error for missing file")
	}
}
