package server

import (
	"encoding/json"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"autopilot-go/binlog"
	"autopilot-go/ctl"
	"autopilot-go/flighttask"
	"autopilot-go/web"
)

const (
	DefaultPort   = 45333
	MaxPacketSize = 65535

	DefaultRateHz = 50.0
)

// wsCycle is the per-cycle JSON pushed to monitors. Unconstrained axes
// marshal as null.
type wsCycle struct {
	ID   uint32      `json:"id"`
	TS   int64       `json:"ts"`
	Type string      `json:"type"`
	Alt  float64     `json:"alt"`
	Pos  [3]*float64 `json:"pos_sp"`
	Vel  [3]*float64 `json:"vel_sp"`
	Thr  [3]*float64 `json:"thr_sp"`
	Gear string      `json:"gear"`
	Up   float64     `json:"speed_up"`
	Down float64     `json:"speed_down"`
	Tilt float64     `json:"tilt"`
}

func axisPtr(a flighttask.Axis) *float64 {
	if !a.Engaged {
		return nil
	}
	v := a.Value
	return &v
}

func vecPtrs(v flighttask.SetpointVec) [3]*float64 {
	return [3]*float64{axisPtr(v.X), axisPtr(v.Y), axisPtr(v.Z)}
}

// UdpServer ingests telemetry frames, keeps the latest collaborator
// snapshot, and ticks the dispatcher at the control rate.
type UdpServer struct {
	conn    *net.UDPConn
	disp    *flighttask.Dispatcher
	pcap    *binlog.PcapWriter
	sender  *ctl.Sender
	webHub  *web.Hub
	running bool
	stopCh  chan struct{}

	mu        sync.Mutex
	vehicleID uint32
	state     flighttask.VehicleState
	waypoint  WaypointFrame
	haveState bool
	activated bool
	seq       uint16
	lastCycle *wsCycle
}

func NewUdpServer(port int, disp *flighttask.Dispatcher) (*UdpServer, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		return nil, err
	}

	conn.SetReadBuffer(256 * 1024)

	return &UdpServer{
		conn:   conn,
		disp:   disp,
		stopCh: make(chan struct{}),
		state: flighttask.VehicleState{
			DistBottom: math.NaN(),
		},
		waypoint: WaypointFrame{Type: flighttask.WaypointIdle},
	}, nil
}

func (s *UdpServer) SetPcapWriter(pw *binlog.PcapWriter) {
	s.pcap = pw
}

func (s *UdpServer) SetCtlSender(snd *ctl.Sender) {
	s.sender = snd
}

func (s *UdpServer) SetWebHub(h *web.Hub) {
	s.webHub = h
}

// Status returns the latest cycle snapshot for the HTTP status surface.
func (s *UdpServer) Status() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCycle == nil {
		return struct{}{}
	}
	return *s.lastCycle
}

// Start runs the receive loop until Stop.
func (s *UdpServer) Start() {
	s.running = true
	buf := make([]byte, MaxPacketSize)
	log.Printf("UDP telemetry listening on %s", s.conn.LocalAddr().String())

	for s.running {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running {
				log.Printf("Read error: %v", err)
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		s.handlePacket(data, addr)
	}
}

// RunControlLoop ticks the dispatcher at rateHz until Stop. Blocks.
func (s *UdpServer) RunControlLoop(rateHz float64) {
	if rateHz <= 0 {
		rateHz = DefaultRateHz
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Step(time.Now().UnixMilli())
		}
	}
}

func (s *UdpServer) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.conn.Close()
}

// Step runs one dispatcher cycle against the latest snapshot. No cycle
// runs before the first state frame arrives.
func (s *UdpServer) Step(tsMs int64) {
	s.mu.Lock()
	if !s.haveState {
		s.mu.Unlock()
		return
	}
	in := flighttask.CycleInput{
		State:       s.state,
		Type:        s.waypoint.Type,
		Target:      s.waypoint.Target,
		CruiseSpeed: s.waypoint.Cruise,
	}
	if !s.activated {
		s.disp.Activate(in.State)
		s.activated = true
	}
	id := s.vehicleID
	s.seq++
	seq := s.seq
	// Update runs under the lock so a parameter reload from the ingest
	// path can never interleave with a cycle.
	res := s.disp.Update(in)
	s.mu.Unlock()

	s.publish(id, tsMs, seq, res)
}

func (s *UdpServer) publish(id uint32, tsMs int64, seq uint16, res flighttask.CycleResult) {
	spLine := ctl.FormatSetpoint(id, tsMs, seq, res.Setpoints)
	if s.sender != nil {
		s.sender.Send(spLine, ctl.FlagSetpoint)
		s.sender.Send(ctl.FormatConstraints(id, tsMs, seq, res.Constraints), ctl.FlagConstraint)
	}

	if s.pcap != nil {
		_ = s.pcap.WritePacket(binlog.FlagCycle, nil, spLine)
	}

	cycle := &wsCycle{
		ID:   id,
		TS:   tsMs,
		Type: res.Type.String(),
		Alt:  res.AltAboveGround,
		Pos:  vecPtrs(res.Setpoints.Position),
		Vel:  vecPtrs(res.Setpoints.Velocity),
		Thr:  vecPtrs(res.Setpoints.Thrust),
		Gear: res.Constraints.Gear.String(),
		Up:   res.Constraints.SpeedUp,
		Down: res.Constraints.SpeedDown,
		Tilt: res.Constraints.TiltDeg,
	}

	s.mu.Lock()
	s.lastCycle = cycle
	s.mu.Unlock()

	if s.webHub != nil {
		b, err := json.Marshal(cycle)
		if err == nil {
			s.webHub.Broadcast(b)
		}
	}
}

// handlePacket walks the packet and applies every telemetry frame it
// contains. Bad bytes are skipped one at a time to resync on the next
// magic.
func (s *UdpServer) handlePacket(data []byte, addr *net.UDPAddr) {
	offset := 0
	for offset < len(data) {
		if len(data)-offset < TelemHdrLen {
			break
		}

		hdr, err := ParseHeader(data[offset:])
		if err != nil {
			offset++
			continue
		}

		totalLen := TelemHdrLen + hdr.BodyLen
		if offset+totalLen > len(data) {
			break
		}

		frame := data[offset : offset+totalLen]

		if s.pcap != nil {
			_ = s.pcap.WritePacket(binlog.FlagTelemetry, addr, frame)
		}

		body := frame[TelemHdrLen:]
		s.applyFrame(hdr, body)

		offset += totalLen
	}
}

// applyFrame feeds one decoded telemetry frame into the snapshot. Also
// used by the replay path.
func (s *UdpServer) applyFrame(hdr *TelemHeader, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vehicleID = hdr.Addr

	switch hdr.Type {
	case TypeStateFrame:
		st, err := ParseStateFrame(body)
		if err != nil {
			log.Printf("ParseStateFrame error: %v", err)
			return
		}
		s.state.Position = st.Position
		s.state.Velocity = st.Velocity
		s.haveState = true

	case TypeWaypointFrame:
		wp, err := ParseWaypointFrame(body)
		if err != nil {
			log.Printf("ParseWaypointFrame error: %v", err)
			return
		}
		s.waypoint = *wp

	case TypeDistBottomFrame:
		dist, err := ParseDistBottomFrame(body)
		if err != nil {
			log.Printf("ParseDistBottomFrame error: %v", err)
			return
		}
		s.state.DistBottom = dist

	case TypeHomeFrame:
		home, err := ParseHomeFrame(body)
		if err != nil {
			log.Printf("ParseHomeFrame error: %v", err)
			return
		}
		s.state.Home = home.Home

	case TypeParamFrame:
		p, err := ParseParamFrame(body)
		if err != nil {
			log.Printf("ParseParamFrame error: %v", err)
			return
		}
		s.disp.SetParams(*p)
		log.Printf("Parameters reloaded: alt1=%.1f alt2=%.1f", s.disp.Params().LandAlt1, s.disp.Params().LandAlt2)
	}
}
