// Package monitoring exposes the characteriser's progress over HTTP so a
// long-running simulation can be inspected while it executes.
package monitoring

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/aiwc/aiwc/characteriser"
)

// A Monitor serves read-only snapshots of the engine state.
type Monitor struct {
	char   *characteriser.Characteriser
	router *mux.Router
}

// NewMonitor creates a monitor over the given engine.
func NewMonitor(char *characteriser.Characteriser) *Monitor {
	m := &Monitor{
		char:   char,
		router: mux.NewRouter(),
	}
	m.router.HandleFunc("/api/kernels", m.handleKernels).Methods("GET")
	m.router.HandleFunc("/api/transfers", m.handleTransfers).Methods("GET")
	return m
}

// Router returns the monitor's HTTP handler.
func (m *Monitor) Router() http.Handler {
	return m.router
}

// StartServer serves the monitor on addr in a background goroutine.
func (m *Monitor) StartServer(addr string) {
	go func() {
		err := http.ListenAndServe(addr, m.router)
		if err != nil {
			log.Printf("monitoring server stopped: %v", err)
		}
	}()
	log.Printf("monitoring server listening on %s", addr)
}

func (m *Monitor) handleKernels(w http.ResponseWriter, r *http.Request) {
	m.writeJSON(w, m.char.KernelRuns())
}

func (m *Monitor) handleTransfers(w http.ResponseWriter, r *http.Request) {
	m.writeJSON(w, m.char.TransferCounts())
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v interface{}) {
	jsonStr, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonStr)
}
