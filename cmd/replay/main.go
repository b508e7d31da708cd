package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"autopilot-go/binlog"
	"autopilot-go/flighttask"
	"autopilot-go/server"
)

func axisField(a flighttask.Axis) string {
	if !a.Engaged {
		return "nan"
	}
	return strconv.FormatFloat(a.Value, 'f', 3, 64)
}

func main() {
	logPath := flag.String("log", "", "Input flight log (pcap)")
	vehicleXML := flag.String("vehicle", "", "Path to vehicle.xml (optional)")
	outPath := flag.String("out", "cycles.csv", "Output CSV path")
	flag.Parse()

	if *logPath == "" {
		fmt.Println("Usage: replay -log <flight.pcap> [-vehicle vehicle.xml] [-out cycles.csv]")
		os.Exit(1)
	}

	params := flighttask.DefaultParams()
	if *vehicleXML != "" {
		p, err := flighttask.ParseFlightParams(*vehicleXML, params)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *vehicleXML, err)
		}
		params = p
	}

	parser := binlog.NewParser(*logPath)
	if err := parser.Parse(); err != nil {
		log.Fatalf("Failed to parse %s: %v", *logPath, err)
	}
	log.Printf("Loaded %d telemetry events", len(parser.Events))

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	w.Write([]string{
		"ts", "type", "alt",
		"pos_x", "pos_y", "pos_z",
		"vel_x", "vel_y", "vel_z",
		"thr_x", "thr_y", "thr_z",
		"gear", "speed_up", "speed_down", "tilt",
	})

	disp := flighttask.NewDispatcher(params, flighttask.NewStraightLineFollower())

	state := flighttask.VehicleState{DistBottom: math.NaN()}
	waypoint := server.WaypointFrame{Type: flighttask.WaypointIdle}
	haveState := false
	activated := false
	cycles := 0

	for _, evt := range parser.Events {
		// One cycle per event that carries a state frame; the other
		// frame types just refresh the snapshot.
		stepThis := false
		for _, fr := range evt.Frames {
			switch fr.Type {
			case server.TypeStateFrame:
				st, err := server.ParseStateFrame(fr.Body)
				if err != nil {
					continue
				}
				state.Position = st.Position
				state.Velocity = st.Velocity
				haveState = true
				stepThis = true
			case server.TypeWaypointFrame:
				wp, err := server.ParseWaypointFrame(fr.Body)
				if err != nil {
					continue
				}
				waypoint = *wp
			case server.TypeDistBottomFrame:
				dist, err := server.ParseDistBottomFrame(fr.Body)
				if err != nil {
					continue
				}
				state.DistBottom = dist
			case server.TypeHomeFrame:
				home, err := server.ParseHomeFrame(fr.Body)
				if err != nil {
					continue
				}
				state.Home = home.Home
			case server.TypeParamFrame:
				p, err := server.ParseParamFrame(fr.Body)
				if err != nil {
					continue
				}
				disp.SetParams(*p)
			}
		}
		if !haveState || !stepThis {
			continue
		}
		if !activated {
			disp.Activate(state)
			activated = true
		}

		res := disp.Update(flighttask.CycleInput{
			State:       state,
			Type:        waypoint.Type,
			Target:      waypoint.Target,
			CruiseSpeed: waypoint.Cruise,
		})

		w.Write([]string{
			strconv.FormatFloat(evt.Timestamp, 'f', 6, 64),
			res.Type.String(),
			strconv.FormatFloat(res.AltAboveGround, 'f', 3, 64),
			axisField(res.Setpoints.Position.X),
			axisField(res.Setpoints.Position.Y),
			axisField(res.Setpoints.Position.Z),
			axisField(res.Setpoints.Velocity.X),
			axisField(res.Setpoints.Velocity.Y),
			axisField(res.Setpoints.Velocity.Z),
			axisField(res.Setpoints.Thrust.X),
			axisField(res.Setpoints.Thrust.Y),
			axisField(res.Setpoints.Thrust.Z),
			res.Constraints.Gear.String(),
			strconv.FormatFloat(res.Constraints.SpeedUp, 'f', 3, 64),
			strconv.FormatFloat(res.Constraints.SpeedDown, 'f', 3, 64),
			strconv.FormatFloat(res.Constraints.TiltDeg, 'f', 1, 64),
		})
		cycles++
	}

	log.Printf("Wrote %d cycles to %s", cycles, *outPath)
}
