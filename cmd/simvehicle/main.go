package main

import (
	"flag"
	"log"
	"math"
	"net"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"autopilot-go/flighttask"
	"autopilot-go/server"
)

// simvehicle sends a synthetic flight over UDP: idle on the pad, take
// off to 20 m, fly a leg, then land. Useful for exercising a running
// daemon without hardware.

const (
	takeoffAlt   = 20.0
	climbSpeed   = 1.5
	cruiseSpeed  = 5.0
	descentSpeed = 0.7
)

type phase int

const (
	phaseIdle phase = iota
	phaseTakeoff
	phaseCruise
	phaseLand
	phaseDone
)

func moveToward(pos, target r3.Vec, speed, dt float64) (r3.Vec, r3.Vec, bool) {
	to := r3.Sub(target, pos)
	dist := r3.Norm(to)
	if dist <= speed*dt {
		return target, r3.Vec{}, true
	}
	vel := r3.Scale(speed/dist, to)
	return r3.Add(pos, r3.Scale(dt, vel)), vel, false
}

func main() {
	dest := flag.String("dest", "127.0.0.1:45333", "Daemon telemetry address")
	id := flag.Uint("id", 0xB50AC, "Vehicle address")
	rate := flag.Float64("rate", 20, "Telemetry rate in Hz")
	flag.Parse()

	conn, err := net.Dial("udp", *dest)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *dest, err)
	}
	defer conn.Close()

	addr := uint32(*id)
	dt := 1.0 / *rate
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	log.Printf("Sending synthetic flight to %s at %.0f Hz", *dest, *rate)

	// Home altitude reference, sent once up front.
	homePkt := server.PackHomeFrame(addr, flighttask.HomePosition{Z: 0, AltValid: true})
	if _, err := conn.Write(homePkt); err != nil {
		log.Fatalf("Write failed: %v", err)
	}

	var (
		pos, vel r3.Vec
		ph       = phaseIdle
		phStart  = time.Now()
		wpType   = flighttask.WaypointIdle
		target   r3.Vec
	)

	for ph != phaseDone {
		<-ticker.C

		switch ph {
		case phaseIdle:
			if time.Since(phStart) > 2*time.Second {
				ph = phaseTakeoff
				wpType = flighttask.WaypointTakeoff
				target = r3.Vec{Z: -takeoffAlt}
				log.Println("Taking off")
			}

		case phaseTakeoff:
			var arrived bool
			pos, vel, arrived = moveToward(pos, target, climbSpeed, dt)
			if arrived {
				ph = phaseCruise
				wpType = flighttask.WaypointPosition
				target = r3.Vec{X: 50, Y: 30, Z: -takeoffAlt}
				log.Println("Cruising")
			}

		case phaseCruise:
			var arrived bool
			pos, vel, arrived = moveToward(pos, target, cruiseSpeed, dt)
			if arrived {
				ph = phaseLand
				wpType = flighttask.WaypointLand
				target = r3.Vec{X: 50, Y: 30}
				log.Println("Landing")
			}

		case phaseLand:
			var arrived bool
			pos, vel, arrived = moveToward(pos, target, descentSpeed, dt)
			if arrived {
				ph = phaseDone
				log.Println("Landed")
			}
		}

		pkt := server.PackStateFrame(addr, pos, vel)
		pkt = append(pkt, server.PackWaypointFrame(addr, wpType, target, 0)...)
		pkt = append(pkt, server.PackDistBottomFrame(addr, math.Max(0, -pos.Z))...)

		if _, err := conn.Write(pkt); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
}
