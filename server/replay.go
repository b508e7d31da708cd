package server

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"autopilot-go/binlog"
)

const (
	pcapGlobalLen = 24
	pcapRecordLen = 16
	phdr2Len      = 8
)

// Replay feeds a recorded flight log back through the ingest path at
// the given speed multiplier (0 for max speed). Cycle records are
// skipped; only telemetry packets are replayed. The control loop must
// be running for the dispatcher to tick against the replayed snapshot.
func (s *UdpServer) Replay(path string, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, pcapGlobalLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return fmt.Errorf("read global header: %w", err)
	}

	s.running = true
	log.Printf("Replaying %s at %.1fx speed...", path, speed)

	bufRec := make([]byte, pcapRecordLen)
	bufPhdr2 := make([]byte, phdr2Len)

	var firstTs float64
	startReal := time.Now()
	pktCount := 0

	for s.running {
		if _, err := io.ReadFull(f, bufRec); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read record: %w", err)
		}

		tsSec := binary.LittleEndian.Uint32(bufRec[0:4])
		tsUsec := binary.LittleEndian.Uint32(bufRec[4:8])
		inclLen := binary.LittleEndian.Uint32(bufRec[8:12])

		if inclLen < phdr2Len {
			// Skip malformed
			f.Seek(int64(inclLen), io.SeekCurrent)
			continue
		}

		if _, err := io.ReadFull(f, bufPhdr2); err != nil {
			return fmt.Errorf("read phdr2: %w", err)
		}

		flag := binary.LittleEndian.Uint16(bufPhdr2[0:2])
		port := binary.LittleEndian.Uint16(bufPhdr2[2:4])
		ipBytes := bufPhdr2[4:8]

		payloadLen := int(inclLen) - phdr2Len
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		// Only telemetry goes back through the ingest path.
		if flag != binlog.FlagTelemetry {
			continue
		}

		pktCount++

		ts := float64(tsSec) + float64(tsUsec)/1e6
		if firstTs == 0 {
			firstTs = ts
			startReal = time.Now()
		} else if speed > 0 {
			targetDelay := time.Duration((ts - firstTs) / speed * float64(time.Second))
			elapsed := time.Since(startReal)
			if targetDelay > elapsed {
				time.Sleep(targetDelay - elapsed)
			}
		}

		addr := &net.UDPAddr{
			IP:   net.IP(ipBytes),
			Port: int(port),
		}

		s.handlePacket(payload, addr)
	}
	log.Printf("Replay loop ended. Total Packets: %d", pktCount)
	return nil
}
