package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"interviewlab/internal/metrics"
	"interviewlab/internal/models"
	"interviewlab/internal/session"
	"interviewlab/internal/utils"
)

// SessionHandler is the HTTP surface over the session engine. Every route
// except creation requires a token scoped to the session it addresses.
type SessionHandler struct {
	manager   *session.Manager
	jwtSecret string
	tokenTTL  time.Duration
}

func NewSessionHandler(manager *session.Manager, jwtSecret string) *SessionHandler {
	return &SessionHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		tokenTTL:  4 * time.Hour,
	}
}

type sessionState struct {
	Session         models.InterviewSession  `json:"session"`
	Stage           string                   `json:"stage"`
	Paused          bool                     `json:"paused"`
	CurrentQuestion *models.Question         `json:"currentQuestion,omitempty"`
	TestCases       []models.TestCase        `json:"testCases,omitempty"`
	Results         []models.ExecutionResult `json:"results,omitempty"`
	PendingFollowUp string                   `json:"pendingFollowUp,omitempty"`
}

func stateOf(ctrl *session.Controller) sessionState {
	state := sessionState{
		Session: ctrl.Session(),
		Stage:   string(ctrl.Stage()),
		Paused:  ctrl.Paused(),
	}
	if q, ok := ctrl.CurrentQuestion(); ok {
		state.CurrentQuestion = &q
	}
	if cases := ctrl.TestCases(); len(cases) > 0 {
		state.TestCases = cases
	}
	if results := ctrl.Results(); len(results) > 0 {
		state.Results = results
	}
	if followUp, ok := ctrl.PendingFollowUp(); ok {
		state.PendingFollowUp = followUp
	}
	return state
}

func (handler *SessionHandler) CreateSessionHandler(writer http.ResponseWriter, request *http.Request) {
	var cfg models.SessionConfig
	if err := json.NewDecoder(request.Body).Decode(&cfg); err != nil {
		utils.JSONError(writer, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.DurationSec <= 0 {
		utils.JSONError(writer, http.StatusBadRequest, "durationSeconds must be positive")
		return
	}

	ctrl, err := handler.manager.Create(request.Context(), cfg)
	if err != nil {
		utils.JSONError(writer, http.StatusInternalServerError, "failed to start session")
		return
	}
	metrics.SessionsStarted.Inc()

	token, err := utils.IssueSessionToken(ctrl.Session().ID, handler.jwtSecret, handler.tokenTTL)
	if err != nil {
		utils.JSONError(writer, http.StatusInternalServerError, "failed to issue session token")
		return
	}

	utils.JSON(writer, http.StatusCreated, map[string]any{
		"state": stateOf(ctrl),
		"token": token,
	})
}

// authorize resolves the controller for the path id and checks the token is
// scoped to it.
func (handler *SessionHandler) authorize(writer http.ResponseWriter, request *http.Request) (*session.Controller, bool) {
	id := chi.URLParam(request, "id")

	claims, err := utils.VerifyToken(request, handler.jwtSecret)
	if err != nil {
		utils.JSONError(writer, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	sub, err := utils.SessionIDFromClaims(claims)
	if err != nil || sub != id {
		utils.JSONError(writer, http.StatusForbidden, "token not valid for this session")
		return nil, false
	}

	ctrl, ok := handler.manager.Get(id)
	if !ok {
		utils.JSONError(writer, http.StatusNotFound, "session not found")
		return nil, false
	}
	return ctrl, true
}

func (handler *SessionHandler) GetSessionHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) SubmitAnswerHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	if err := ctrl.SubmitAnswer(request.Context()); err != nil {
		writeControllerError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) SkipHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	if err := ctrl.Skip(request.Context()); err != nil {
		writeControllerError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (handler *SessionHandler) RunCodeHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	var req codeRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil || req.Code == "" {
		utils.JSONError(writer, http.StatusBadRequest, "code is required")
		return
	}

	summary, err := ctrl.RunCode(request.Context(), req.Code, req.Language)
	if err != nil {
		metrics.CodeExecutions.WithLabelValues("error").Inc()
		writeControllerError(writer, err)
		return
	}
	outcome := "failed"
	if summary.Passed {
		outcome = "passed"
	}
	metrics.CodeExecutions.WithLabelValues(outcome).Inc()

	utils.JSON(writer, http.StatusOK, summary)
}

func (handler *SessionHandler) SubmitCodeHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	var req codeRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil || req.Code == "" {
		utils.JSONError(writer, http.StatusBadRequest, "code is required")
		return
	}

	if err := ctrl.SubmitCode(request.Context(), req.Code, req.Language); err != nil {
		writeControllerError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) FollowUpHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		utils.JSONError(writer, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.AnswerFollowUp(request.Context(), req.Answer); err != nil {
		writeControllerError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) ViolationHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	var req struct {
		Type        string  `json:"type"`
		DurationSec float64 `json:"durationSeconds"`
	}
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		utils.JSONError(writer, http.StatusBadRequest, "invalid request body")
		return
	}

	vType := models.ViolationType(req.Type)
	switch vType {
	case models.ViolationTabSwitch, models.ViolationWindowBlur, models.ViolationFullscreenExit:
	default:
		utils.JSONError(writer, http.StatusBadRequest, "unknown violation type")
		return
	}

	ctrl.ReportViolation(vType, time.Duration(req.DurationSec*float64(time.Second)))
	metrics.ViolationsRecorded.WithLabelValues(req.Type).Inc()

	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) ResumeHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	if err := ctrl.Resume(request.Context()); err != nil {
		writeControllerError(writer, err)
		return
	}
	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func (handler *SessionHandler) EndSessionHandler(writer http.ResponseWriter, request *http.Request) {
	ctrl, ok := handler.authorize(writer, request)
	if !ok {
		return
	}

	if err := ctrl.End(request.Context()); err != nil {
		utils.JSONError(writer, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SessionsCompleted.WithLabelValues("manual").Inc()

	utils.JSON(writer, http.StatusOK, stateOf(ctrl))
}

func writeControllerError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionPaused):
		utils.JSONError(writer, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionCompleted):
		utils.JSONError(writer, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrEmptyAnswer), errors.Is(err, session.ErrNoExecution):
		utils.JSONError(writer, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.JSONError(writer, http.StatusConflict, err.Error())
	}
}
