package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/ledger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// StreamQuery is the query string of the stream endpoint besides the token.
type StreamQuery struct {
	Lang string `form:"lang" json:"lang" binding:"omitempty,bcp47_language_tag"`
}

// liveSession is one connected attempt.
type liveSession struct {
	ctrl   *session.Controller
	client *ws.Client
	conn   *websocket.Conn
}

// WSHandler runs proctored exam sessions over WebSocket. A student has at
// most one live connection; opening a second one closes the first.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader

	mu   sync.Mutex
	live map[string]*liveSession
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		live:           make(map[string]*liveSession),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_name/stream?token=...&lang=...
// Upgrades to WebSocket and runs the student's exam session on it.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q StreamQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.PrepareReader(conn)

	wsLog := h.log.With().
		Str("request_id", response.RequestID(c)).
		Str("user_id", claims.UserID).
		Str("exam", claims.ExamName).
		Logger()

	client := ws.NewClient(conn, wsLog)
	ls := &liveSession{client: client, conn: conn}
	h.register(claims.UserID, ls)
	defer h.unregister(claims.UserID, ls)

	onComplete := func(model.Result) {
		client.Finish(websocket.CloseNormalClosure, "exam submitted")
		conn.Close()
	}

	ctrl, err := h.sessionService.Open(context.Background(), service.OpenRequest{
		UserID:   claims.UserID,
		ExamName: claims.ExamName,
		Language: q.Lang,
	}, client, client, onComplete)
	if ctrl != nil {
		defer ctrl.Close()
		h.mu.Lock()
		ls.ctrl = ctrl
		h.mu.Unlock()
	}
	if err != nil {
		code := errorCode(err)
		wsLog.Warn().Err(err).Str("code", string(code)).Msg("Session could not start")
		client.SendError(string(code), response.GetMessage(code), nil)
		client.Finish(websocket.CloseNormalClosure, string(code))
		return
	}

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				client.SendError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), nil)
				continue
			}
			if ws.IsUnexpectedClose(err) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		if fields := validator.Struct(&msg); fields != nil {
			client.SendError(string(response.ErrValidation), response.GetMessage(response.ErrValidation), fields)
			continue
		}

		h.dispatch(wsLog, ctrl, client, &msg)
	}
}

func (h *WSHandler) dispatch(log zerolog.Logger, ctrl *session.Controller, client *ws.Client, msg *ws.RequestPayload) {
	var err error
	switch msg.Action {
	case ws.ActionGoTo:
		err = ctrl.GoTo(*msg.Index)
	case ws.ActionNext:
		err = ctrl.Next()
	case ws.ActionPrevious:
		err = ctrl.Previous()
	case ws.ActionSelect:
		err = ctrl.SelectOption(*msg.Option)
	case ws.ActionReview:
		err = ctrl.ToggleReview()
	case ws.ActionClear:
		err = ctrl.ClearResponse()
	case ws.ActionAckWarning:
		err = ctrl.AcknowledgeWarning()
	case ws.ActionSignal:
		client.Emit(msg.Signal)
	case ws.ActionPing:
		client.Send(ws.PongResponse{Event: ws.EventPong})
	case ws.ActionSubmit:
		// the session reports submit failures to the client itself
		if _, err := ctrl.Submit(context.Background(), model.ReasonManual); err != nil {
			log.Error().Err(err).Msg("Manual submission failed")
		}
	}

	if err != nil {
		code := errorCode(err)
		log.Debug().Err(err).Str("action", string(msg.Action)).Msg("Action rejected")
		client.SendError(string(code), response.GetMessage(code), nil)
	}
}

func (h *WSHandler) register(userID string, ls *liveSession) {
	h.mu.Lock()
	prev := h.live[userID]
	h.live[userID] = ls
	var prevCtrl *session.Controller
	if prev != nil {
		prevCtrl = prev.ctrl
	}
	h.mu.Unlock()

	if prev != nil {
		h.log.Info().Str("user_id", userID).Msg("Closing previous connection for reopened session")
		shutdownSession(prevCtrl, prev, websocket.ClosePolicyViolation, "session opened elsewhere")
	}
}

func (h *WSHandler) unregister(userID string, ls *liveSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live[userID] == ls {
		delete(h.live, userID)
	}
}

// ActiveSessions reports how many students are connected.
func (h *WSHandler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// Shutdown saves and closes every live session.
func (h *WSHandler) Shutdown() {
	h.mu.Lock()
	type pair struct {
		ctrl *session.Controller
		ls   *liveSession
	}
	all := make([]pair, 0, len(h.live))
	for _, ls := range h.live {
		all = append(all, pair{ls.ctrl, ls})
	}
	h.mu.Unlock()

	for _, p := range all {
		shutdownSession(p.ctrl, p.ls, websocket.CloseGoingAway, "server shutting down")
	}
	h.log.Info().Int("sessions", len(all)).Msg("Live sessions closed")
}

func shutdownSession(ctrl *session.Controller, ls *liveSession, code int, reason string) {
	if ctrl != nil {
		ctrl.Close()
	}
	ls.client.Finish(code, reason)
	ls.conn.Close()
}

// errorCode maps session and service errors onto client error codes.
func errorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrExamNotStarted):
		return response.ErrExamNotStarted
	case errors.Is(err, service.ErrExamEnded):
		return response.ErrExamEnded
	case errors.Is(err, session.ErrNoContent):
		return response.ErrNoContent
	case errors.Is(err, session.ErrLocked):
		return response.ErrSessionLocked
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrAlreadyStarted):
		return response.ErrSessionInactive
	case errors.Is(err, ledger.ErrInvalidOption):
		return response.ErrInvalidOption
	default:
		return response.ErrInternal
	}
}
