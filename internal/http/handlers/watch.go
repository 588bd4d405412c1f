package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"studio/internal/domain"
	"studio/internal/generation"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = (watchPongWait * 9) / 10
	watchReadLimit  = 512
)

// frameWriter serialises data frames; gorilla allows one concurrent writer.
type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (f *frameWriter) send(state generation.PollState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	return f.conn.WriteJSON(state)
}

func (f *frameWriter) control(messageType int, data []byte) error {
	return f.conn.WriteControl(messageType, data, time.Now().Add(watchWriteWait))
}

// WatchJob upgrades to a websocket and drives a Poller for the job while the
// socket is open. Every check result is pushed as a PollState frame and the
// socket is closed once polling stops. A retried job needs a new session.
func (a *App) WatchJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, r, domain.ErrUnauthorized, nil)
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.Get(r.Context(), userID, jobID); err != nil {
		a.fail(w, r, err, nil)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := a.Logger.With().Str("job_id", jobID).Str("session_id", sessionID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &frameWriter{conn: conn}
	poller := generation.NewPoller(a.Jobs, userID, jobID, generation.PollerOptions{
		Interval: a.PollInterval,
		OnUpdate: func(state generation.PollState) {
			if err := out.send(state); err != nil {
				log.Debug().Err(err).Msg("watch frame write failed")
				cancel()
			}
		},
	})
	if err := a.Polls.Track(jobID, sessionID, poller); err != nil {
		reason := "unavailable"
		if errors.Is(err, generation.ErrRegistryClosed) {
			reason = "server shutting down"
		}
		_ = out.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
		return
	}
	defer poller.Stop()
	if err := poller.Start(ctx); err != nil {
		log.Error().Err(err).Msg("start poller")
		return
	}
	log.Debug().Msg("watch session started")

	go readUntilClosed(conn, cancel)

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-poller.Done():
			state := poller.State()
			reason := string(state.Status)
			code := websocket.CloseNormalClosure
			switch {
			case poller.Err() != nil:
				code = websocket.CloseInternalServerErr
				reason = "status check failed"
			case ctx.Err() != nil:
				return
			case !state.Status.IsTerminal():
				code = websocket.CloseGoingAway
				reason = "polling stopped"
			}
			_ = out.control(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
			log.Debug().Str("status", string(state.Status)).Msg("watch session finished")
			return
		case <-ping.C:
			if err := out.control(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readUntilClosed drains client frames so control messages are processed and
// cancels the session once the peer goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(watchReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
