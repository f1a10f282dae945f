package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interviewlab/internal/session"
	"interviewlab/internal/utils"
)

// LiveHandler is the websocket gateway for the listening stage: the client
// streams audio frames and recognition text in, and receives stage and
// countdown updates back.
type LiveHandler struct {
	manager   *session.Manager
	jwtSecret string
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewLiveHandler(manager *session.Manager, jwtSecret string, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:    logger,
	}
}

// liveMessage is one client frame. Type is "frame" (raw samples) or
// "transcript" (recognized text, final or interim).
type liveMessage struct {
	Type    string    `json:"type"`
	Samples []float64 `json:"samples,omitempty"`
	Text    string    `json:"text,omitempty"`
	Final   bool      `json:"final,omitempty"`
}

// liveState is pushed to the client once a second and after every message.
type liveState struct {
	Type             string  `json:"type"`
	Stage            string  `json:"stage"`
	Paused           bool    `json:"paused"`
	TimeRemainingSec int     `json:"timeRemainingSeconds"`
	CountdownSec     float64 `json:"countdownSeconds"`
}

func stateMessage(ctrl *session.Controller) liveState {
	return liveState{
		Type:             "state",
		Stage:            string(ctrl.Stage()),
		Paused:           ctrl.Paused(),
		TimeRemainingSec: ctrl.Session().TimeRemainingSec,
		CountdownSec:     ctrl.Countdown().Seconds(),
	}
}

func (handler *LiveHandler) LiveSessionWS(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")

	// Browsers cannot set headers on websocket requests, so the token also
	// rides on the query string.
	if request.Header.Get("Authorization") == "" && request.URL.Query().Get("token") != "" {
		request.Header.Set("Authorization", "Bearer "+request.URL.Query().Get("token"))
	}
	claims, err := utils.VerifyToken(request, handler.jwtSecret)
	if err != nil {
		utils.JSONError(writer, http.StatusUnauthorized, err.Error())
		return
	}
	if sub, err := utils.SessionIDFromClaims(claims); err != nil || sub != id {
		utils.JSONError(writer, http.StatusForbidden, "token not valid for this session")
		return
	}

	ctrl, ok := handler.manager.Get(id)
	if !ok {
		utils.JSONError(writer, http.StatusNotFound, "session not found")
		return
	}

	conn, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		handler.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(state liveState) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(state)
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(stateMessage(ctrl)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				handler.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "frame":
			ctrl.FeedFrame(msg.Samples, time.Now())
		case "transcript":
			ctrl.FeedTranscript(msg.Text, msg.Final)
		}

		if err := send(stateMessage(ctrl)); err != nil {
			return
		}
	}
}
