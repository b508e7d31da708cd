package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"autopilot-go/binlog"
	"autopilot-go/ctl"
	"autopilot-go/flighttask"
	"autopilot-go/server"
	"autopilot-go/web"
)

func main() {
	port := flag.Int("port", server.DefaultPort, "UDP telemetry port to listen on")
	httpPort := flag.Int("http", 0, "HTTP/WebSocket port (e.g. 8080). 0 to disable.")
	vehicleXML := flag.String("vehicle", "vehicle.xml", "Path to vehicle.xml")
	rate := flag.Float64("rate", server.DefaultRateHz, "Control loop rate in Hz")
	pcapPath := flag.String("pcap", "", "Path to output flight log (optional)")
	replayPath := flag.String("replay", "", "Replay a recorded flight log instead of listening")
	replaySpeed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	// Load parameters; missing file keeps the defaults.
	params := flighttask.DefaultParams()
	if _, err := os.Stat(*vehicleXML); err == nil {
		log.Println("Loading configuration...")
		p, err := flighttask.ParseFlightParams(*vehicleXML, params)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *vehicleXML, err)
		}
		params = p
	} else {
		log.Printf("%s not found, using default parameters", *vehicleXML)
	}

	disp := flighttask.NewDispatcher(params, flighttask.NewStraightLineFollower())

	udpSvr, err := server.NewUdpServer(*port, disp)
	if err != nil {
		log.Fatalf("Failed to create UDP server: %v", err)
	}

	// Configure Web Server
	if *httpPort > 0 {
		webSvr := web.NewServer()
		webSvr.StatusFunc = udpSvr.Status
		configDir := filepath.Dir(*vehicleXML)
		go webSvr.Start(*httpPort, "", configDir)
		udpSvr.SetWebHub(webSvr.Hub)
	}

	// Configure downstream senders
	ctlConfigs := flighttask.ParseCtlSenders(*vehicleXML)
	if len(ctlConfigs) > 0 {
		sender := ctl.NewSender()
		for _, cfg := range ctlConfigs {
			fullAddr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
			if cfg.Type == "TCP" {
				sender.AddTCPSender(fullAddr, cfg.Mask)
				log.Printf("Added CTL TCP Sender: %s (mask %x)", fullAddr, cfg.Mask)
			} else {
				sender.AddUDPSender(fullAddr, cfg.Mask)
				log.Printf("Added CTL UDP Sender: %s (mask %x)", fullAddr, cfg.Mask)
			}
		}
		if err := sender.Start(); err != nil {
			log.Fatalf("Failed to start CTL sender: %v", err)
		}
		udpSvr.SetCtlSender(sender)
		defer sender.Stop()
	}

	if *pcapPath != "" {
		// Auto-generate name if directory
		path := *pcapPath
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = fmt.Sprintf("%s/FLTBIN_%s.pcap", path, time.Now().Format("20060102150405"))
		}

		pw, err := binlog.NewPcapWriter(path)
		if err != nil {
			log.Fatalf("Failed to create flight log writer: %v", err)
		}
		defer pw.Close()
		udpSvr.SetPcapWriter(pw)
		log.Printf("Logging flight to %s", path)
	}

	go udpSvr.RunControlLoop(*rate)

	if *replayPath != "" {
		if err := udpSvr.Replay(*replayPath, *replaySpeed); err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		udpSvr.Stop()
		return
	}

	go udpSvr.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	udpSvr.Stop()
}
