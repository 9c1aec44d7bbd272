// Package main provides a command-line client for the player's control API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/cadenza-player/cadenza/internal/app/audio"
)

var (
	app    = kingpin.New("playerctl", "cadenza playback control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8712").String()

	statusCmd = app.Command("status", "Show the current playback state")

	playCmd     = app.Command("play", "Start or resume playback")
	playTrackID = playCmd.Arg("track-id", "Track ID to play (optional)").String()
	playSource  = playCmd.Flag("source", "Source URL for the track").String()

	pauseCmd = app.Command("pause", "Pause playback")
	stopCmd  = app.Command("stop", "Stop playback")
	nextCmd  = app.Command("next", "Skip to the next track")
	prevCmd  = app.Command("previous", "Go back to the previous track")

	seekCmd = app.Command("seek", "Seek to a position")
	seekPos = seekCmd.Arg("position", "Position, e.g. 1m30s").Required().Duration()

	volumeCmd   = app.Command("volume", "Set the playback volume")
	volumeLevel = volumeCmd.Arg("level", "Volume in [0, 1]").Required().Float64()

	muteCmd = app.Command("mute", "Toggle mute")

	modeCmd  = app.Command("mode", "Set the play mode")
	modeName = modeCmd.Arg("mode", "sequence, list-loop, single or random").Required().String()

	queueCmd = app.Command("queue", "Show the play queue")

	watchCmd = app.Command("watch", "Stream state changes until interrupted")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case statusCmd.FullCommand():
		var st audio.State
		call(http.MethodGet, "/api/state", nil, &st)
		printState(st)
	case playCmd.FullCommand():
		var st audio.State
		call(http.MethodPost, "/api/play", playBody(), &st)
		printState(st)
	case pauseCmd.FullCommand():
		call(http.MethodPost, "/api/pause", nil, nil)
		fmt.Println("Paused")
	case stopCmd.FullCommand():
		call(http.MethodPost, "/api/stop", nil, nil)
		fmt.Println("Stopped")
	case nextCmd.FullCommand():
		printMove("/api/next")
	case prevCmd.FullCommand():
		printMove("/api/previous")
	case seekCmd.FullCommand():
		call(http.MethodPost, "/api/seek", map[string]any{"positionMs": seekPos.Milliseconds()}, nil)
		fmt.Printf("Position: %s\n", *seekPos)
	case volumeCmd.FullCommand():
		call(http.MethodPost, "/api/volume", map[string]any{"volume": *volumeLevel}, nil)
		fmt.Printf("Volume: %.2f\n", *volumeLevel)
	case muteCmd.FullCommand():
		var st audio.State
		call(http.MethodPost, "/api/mute", nil, &st)
		fmt.Printf("Muted: %v\n", st.Muted)
	case modeCmd.FullCommand():
		call(http.MethodPut, "/api/mode", map[string]any{"mode": *modeName}, nil)
		fmt.Printf("Mode: %s\n", *modeName)
	case queueCmd.FullCommand():
		var q audio.QueueSnapshot
		call(http.MethodGet, "/api/queue", nil, &q)
		printQueue(q)
	case watchCmd.FullCommand():
		watch()
	}
}

func playBody() map[string]any {
	if *playTrackID == "" {
		return nil
	}
	t := map[string]any{"id": *playTrackID, "origin": "REMOTE"}
	if *playSource != "" {
		t["sourceUrl"] = *playSource
		t["origin"] = "LOCAL"
	}
	return map[string]any{"track": t}
}

// call performs one API request and decodes the response into out.
func call(method, path string, body, out any) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fatal(err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, *server+path, reqBody)
	if err != nil {
		fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal(err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			fatal(fmt.Errorf("%s", apiErr.Error))
		}
		fatal(fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fatal(err)
		}
	}
}

func printMove(path string) {
	var resp struct {
		Moved bool        `json:"moved"`
		State audio.State `json:"state"`
	}
	call(http.MethodPost, path, nil, &resp)
	if !resp.Moved {
		fmt.Println("Nowhere to go")
		return
	}
	printState(resp.State)
}

func printState(st audio.State) {
	status := "stopped"
	switch {
	case st.IsLoading:
		status = "loading"
	case st.IsPlaying:
		status = "playing"
	case st.IsPaused:
		status = "paused"
	}

	if st.Track != nil {
		fmt.Printf("%s  %s - %s\n", status, st.Track.Artist, st.Track.Title)
	} else {
		fmt.Printf("%s  (no track)\n", status)
	}
	fmt.Printf("  position %s / %s  volume %.2f  mode %s\n",
		st.Position.Round(time.Second), st.Duration.Round(time.Second), st.Volume, st.ModeName)
	if st.Err != "" {
		fmt.Printf("  error: %s\n", st.Err)
	}
	if st.QueueCompleted {
		fmt.Println("  queue completed")
	}
}

func printQueue(q audio.QueueSnapshot) {
	if len(q.Tracks) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	fmt.Printf("Queue (%d tracks, mode %s):\n", len(q.Tracks), q.ModeName)
	for i, t := range q.Tracks {
		marker := "  "
		if i == q.CurrentIndex {
			marker = "> "
		}
		fmt.Printf("%s%2d. %s - %s\n", marker, i, t.Artist, t.Title)
	}
}

// watch streams state snapshots over the websocket feed until interrupted.
func watch() {
	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		conn.Close()
	}()

	for {
		var st audio.State
		if err := conn.ReadJSON(&st); err != nil {
			return
		}
		printState(st)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
