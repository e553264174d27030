package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spigell/interview-coach/internal/interview"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	msgSubmit = "submit"
	msgCancel = "cancel"
	msgFrame  = "frame"
	msgState  = "state"
	msgError  = "error"

	outboundBuffer = 64
)

type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type frameMessage struct {
	Type string `json:"type"`
	interview.Frame
}

type stateMessage struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
	QuestionCount int    `json:"questionCount"`
	Busy          bool   `json:"busy"`
	Saved         bool   `json:"saved"`
	TranscriptID  string `json:"transcriptId,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newState(s interview.Session) stateMessage {
	return stateMessage{
		Type:          msgState,
		SessionID:     s.ID,
		Phase:         s.Phase.String(),
		QuestionIndex: s.CurrentIndex,
		QuestionCount: len(s.Questions),
		Busy:          s.Busy(),
		Saved:         s.Saved,
		TranscriptID:  s.TranscriptID,
	}
}

// handleInterview runs one interview per websocket connection. Submissions
// run in the background so a cancel message can reach the controller while
// an evaluation is in flight.
func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("userId"))
	}

	g, ctx := errgroup.WithContext(r.Context())
	out := make(chan any, outboundBuffer)
	send := func(v any) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	}

	ctrl := interview.New(s.deps.Questions, s.deps.Evaluator, s.deps.Store,
		interview.WithLogger(s.logger),
		interview.WithMetrics(s.deps.Metrics),
		interview.WithTimeouts(s.cfg.Timeouts),
		interview.WithRevealInterval(s.cfg.RevealInterval),
		interview.WithUserID(userID),
		interview.WithDisplay(interview.DisplayFunc(func(f interview.Frame) {
			send(frameMessage{Type: msgFrame, Frame: f})
		})),
	)
	defer ctrl.Close()

	log := s.logger.With(zap.String("session_id", ctrl.ID()))
	log.Debug("websocket interview connected")

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg := <-out:
				if err := wsjson.Write(ctx, conn, msg); err != nil {
					return err
				}
			}
		}
	})

	run := func(op func() (interview.Session, error)) {
		g.Go(func() error {
			snapshot, err := op()
			if err != nil && ctx.Err() == nil {
				send(errorMessage{Type: msgError, Error: err.Error()})
			}
			send(newState(snapshot))
			return nil
		})
	}

	run(func() (interview.Session, error) { return ctrl.Start(ctx) })

	g.Go(func() error {
		for {
			var msg clientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return err
			}

			switch msg.Type {
			case msgSubmit:
				text := msg.Text
				run(func() (interview.Session, error) { return ctrl.Submit(ctx, text) })
			case msgCancel:
				ctrl.Cancel()
			default:
				send(errorMessage{Type: msgError, Error: "unknown message type " + msg.Type})
			}
		}
	})

	err = g.Wait()
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		log.Debug("websocket interview closed")
	default:
		log.Info("websocket interview ended", zap.Error(err))
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
