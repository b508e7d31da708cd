package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
)

type Server struct {
	Hub *Hub

	// StatusFunc supplies the latest cycle snapshot for /status.
	StatusFunc func() interface{}
}

func NewServer() *Server {
	return &Server{
		Hub: NewHub(),
	}
}

func (s *Server) Start(port int, distDir string, configDir string) {
	go s.Hub.Run()

	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})

	// Latest cycle snapshot
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.StatusFunc == nil {
			w.Write([]byte("{}"))
			return
		}
		b, err := json.Marshal(s.StatusFunc())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write(b)
	})

	// Vehicle config file
	if configDir != "" {
		mux.HandleFunc("/vehicle.xml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(configDir, "vehicle.xml"))
		})
	}

	// Static Frontend
	if distDir != "" {
		fs := http.FileServer(http.Dir(distDir))
		mux.Handle("/", fs)
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP Server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}
