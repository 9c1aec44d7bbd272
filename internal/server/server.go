// Package server exposes the player over HTTP: a JSON control API built
// on gorilla/mux and a websocket feed that pushes state snapshots to
// connected clients.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/audio"
)

// Server serves the playback control API.
type Server struct {
	svc  *audio.Service
	http *http.Server
}

// New builds a server for the given playback service.
func New(addr string, svc *audio.Service) *Server {
	s := &Server{svc: svc}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/play", s.handlePlay).Methods(http.MethodPost)
	api.HandleFunc("/pause", s.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/next", s.handleNext).Methods(http.MethodPost)
	api.HandleFunc("/previous", s.handlePrevious).Methods(http.MethodPost)
	api.HandleFunc("/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/volume", s.handleVolume).Methods(http.MethodPost)
	api.HandleFunc("/mute", s.handleMute).Methods(http.MethodPost)
	api.HandleFunc("/mode", s.handleMode).Methods(http.MethodPut)

	api.HandleFunc("/queue", s.handleGetQueue).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleSetQueue).Methods(http.MethodPut)
	api.HandleFunc("/queue/tracks", s.handleAddTrack).Methods(http.MethodPost)
	api.HandleFunc("/queue/tracks/{index}", s.handleRemoveTrack).Methods(http.MethodDelete)
	api.HandleFunc("/queue/tracks/{index}/play", s.handlePlayFromQueue).Methods(http.MethodPost)
	api.HandleFunc("/queue/clear", s.handleClearQueue).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", s.http.Addr).Msg("control server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
