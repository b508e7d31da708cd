package binlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	pcapGlobalLen = 24 // PCAP_GLOBAL_STRUCT <IHHiiii
	pcapRecordLen = 16 // PCAP_RECORD_STRUCT <IIII
	phdr2Len      = 8  // PCAP_PHDR2_STRUCT <HHI

	telemMagic  = 0x5841
	telemHdrLen = 9
)

// Frame is one telemetry frame extracted from a logged packet. Body is
// left undecoded; the server package owns the payload formats.
type Frame struct {
	Addr uint32
	Type uint8
	Body []byte
}

// Event groups the frames of one logged packet with its capture time.
type Event struct {
	Timestamp float64 // seconds since epoch
	Flag      uint16
	Frames    []Frame
}

// Parser reads a flight log written by PcapWriter back into an event
// stream for replay and offline analysis.
type Parser struct {
	Path string

	Events []Event
}

func NewParser(path string) *Parser {
	return &Parser{Path: path}
}

func (p *Parser) Parse() error {
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, pcapGlobalLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return fmt.Errorf("pcap header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != PcapMagic {
		return fmt.Errorf("bad pcap magic")
	}

	for {
		rec := make([]byte, pcapRecordLen)
		if _, err := io.ReadFull(f, rec); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("pcap record: %w", err)
		}
		tsSec := binary.LittleEndian.Uint32(rec[0:4])
		tsUsec := binary.LittleEndian.Uint32(rec[4:8])
		inclLen := binary.LittleEndian.Uint32(rec[8:12])
		if inclLen < phdr2Len {
			// malformed record, skip the stated length
			if _, err := f.Seek(int64(inclLen), io.SeekCurrent); err != nil {
				return fmt.Errorf("skip malformed record: %w", err)
			}
			continue
		}

		phdr := make([]byte, phdr2Len)
		if _, err := io.ReadFull(f, phdr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("pcap phdr2: %w", err)
		}
		flag := binary.LittleEndian.Uint16(phdr[0:2])

		payloadLen := int(inclLen) - phdr2Len
		if payloadLen <= 0 {
			continue
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("pcap payload: %w", err)
		}

		evt := Event{
			Timestamp: float64(tsSec) + float64(tsUsec)/1e6,
			Flag:      flag,
			Frames:    splitFrames(payload),
		}
		if len(evt.Frames) > 0 {
			p.Events = append(p.Events, evt)
		}
	}
	return nil
}

// splitFrames walks a packet payload and extracts every framed
// telemetry record. Unknown bytes are skipped one at a time, the same
// resync strategy the live ingest path uses.
func splitFrames(data []byte) []Frame {
	frames := []Frame{}
	offset := 0
	for offset+telemHdrLen <= len(data) {
		if binary.LittleEndian.Uint16(data[offset:]) != telemMagic {
			offset++
			continue
		}
		addr := binary.LittleEndian.Uint32(data[offset+2 : offset+6])
		typ := data[offset+6]
		bodyLen := int(binary.LittleEndian.Uint16(data[offset+7 : offset+9]))
		if offset+telemHdrLen+bodyLen > len(data) {
			break
		}
		body := make([]byte, bodyLen)
		copy(body, data[offset+telemHdrLen:offset+telemHdrLen+bodyLen])
		frames = append(frames, Frame{Addr: addr, Type: typ, Body: body})
		offset += telemHdrLen + bodyLen
	}
	return frames
}
