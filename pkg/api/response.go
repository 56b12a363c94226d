package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the response shape every endpoint returns.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

var devMode bool

// SetDevMode enables raw error details in responses. Call once at startup.
func SetDevMode(enabled bool) {
	devMode = enabled
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, Envelope{Success: true, Data: data})
}

func Message(w http.ResponseWriter, status int, msg string) {
	write(w, status, Envelope{Success: true, Message: msg})
}

// Fail writes a failure envelope. err is only exposed in development mode.
func Fail(w http.ResponseWriter, status int, msg string, err error) {
	env := Envelope{Success: false, Message: msg}
	if err != nil {
		log.Printf("request failed (%d): %s: %v", status, msg, err)
		if devMode {
			env.Error = err.Error()
		}
	}
	write(w, status, env)
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
