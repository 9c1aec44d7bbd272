package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cadenza-player/cadenza/internal/domain/queue"
	"github.com/cadenza-player/cadenza/internal/domain/track"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track *track.Track `json:"track"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var err error
	if req.Track != nil {
		err = s.svc.PlayTrack(r.Context(), *req.Track)
	} else {
		err = s.svc.Play(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.svc.Pause()
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.svc.Stop()
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	moved := s.svc.PlayNext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "state": s.svc.Snapshot()})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	moved := s.svc.PlayPrevious(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "state": s.svc.Snapshot()})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionMs int64 `json:"positionMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.svc.Seek(time.Duration(req.PositionMs) * time.Millisecond)
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	s.svc.SetVolume(*req.Volume)
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	s.svc.ToggleMute()
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := queue.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.svc.SetPlayMode(mode)
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Queue())
}

func (s *Server) handleSetQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks     []track.Track `json:"tracks"`
		StartIndex int           `json:"startIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.svc.SetQueue(req.Tracks, req.StartIndex)
	writeJSON(w, http.StatusOK, s.svc.Queue())
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track track.Track `json:"track"`
		At    *int        `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track id is required")
		return
	}
	at := -1
	if req.At != nil {
		at = *req.At
	}
	s.svc.AddToQueue(req.Track, at)
	writeJSON(w, http.StatusCreated, s.svc.Queue())
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue index")
		return
	}
	s.svc.RemoveFromQueue(index)
	writeJSON(w, http.StatusOK, s.svc.Queue())
}

func (s *Server) handlePlayFromQueue(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue index")
		return
	}
	if err := s.svc.PlayFromQueue(r.Context(), index); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearQueue()
	writeJSON(w, http.StatusOK, s.svc.Queue())
}
