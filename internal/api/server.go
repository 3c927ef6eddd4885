package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"hirepath/internal/application"
	"hirepath/internal/apperr"
	"hirepath/internal/interview"
	"hirepath/internal/lifecycle"
	"hirepath/internal/model"
	"hirepath/internal/notifier"
	"hirepath/internal/storage"
)

// Lifecycle 抽象会产生状态变更的操作。
type Lifecycle interface {
	SubmitApplication(ctx context.Context, req application.SubmitRequest) (lifecycle.ApplicationResult, error)
	TransitionApplication(ctx context.Context, req application.TransitionRequest) (lifecycle.ApplicationResult, error)
	ScheduleRound(ctx context.Context, req interview.ScheduleRequest) (lifecycle.RoundResult, error)
	RecordAssessment(ctx context.Context, req interview.AssessmentRequest) (model.Assessment, error)
	CloseRound(ctx context.Context, req interview.CloseRequest) (lifecycle.RoundResult, error)
	Register(ctx context.Context, req lifecycle.RegisterRequest) (lifecycle.RegistrationResult, error)
	ApproveRegistration(ctx context.Context, registrationID, actorID, narration string) (lifecycle.RegistrationResult, error)
	RejectRegistration(ctx context.Context, registrationID, actorID, narration string) (lifecycle.RegistrationResult, error)
}

// ApplicationReader 只读查询申请。
type ApplicationReader interface {
	Get(ctx context.Context, number uint) (model.JobApplication, error)
	History(ctx context.Context, number uint) ([]model.ApplicationEvent, error)
	List(ctx context.Context, q storage.ApplicationQuery) ([]model.JobApplication, error)
}

// InterviewReader 只读查询轮次。
type InterviewReader interface {
	Get(ctx context.Context, id string) (model.InterviewSession, error)
	Assessments(ctx context.Context, interviewID string) ([]model.Assessment, error)
}

// RegistrationReader 只读查询注册记录。
type RegistrationReader interface {
	Get(ctx context.Context, registrationID string) (model.Registration, error)
}

// Readers 汇总只读依赖，任一为空时对应 GET 路由返回 503。
type Readers struct {
	Applications  ApplicationReader
	Interviews    InterviewReader
	Registrations RegistrationReader
}

// DecisionRequest 审批请求体。
type DecisionRequest struct {
	ActorID   string `json:"actor_id"`
	Narration string `json:"narration"`
}

// envelope 写操作的响应；通知结果不影响响应状态。
type envelope struct {
	Data           any    `json:"data"`
	NotificationID string `json:"notification_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type interviewDetail struct {
	model.InterviewSession
	Assessments []model.Assessment `json:"assessments"`
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(ops Lifecycle, reads Readers, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.New(os.Stdout, "[server] ", log.LstdFlags)
	}
	h := &handler{ops: ops, reads: reads, logger: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/applications", h.listApplications)
	mux.HandleFunc("POST /api/applications", h.submitApplication)
	mux.HandleFunc("GET /api/applications/{number}", h.getApplication)
	mux.HandleFunc("GET /api/applications/{number}/history", h.applicationHistory)
	mux.HandleFunc("POST /api/applications/{number}/transitions", h.transitionApplication)

	mux.HandleFunc("POST /api/interviews", h.scheduleRound)
	mux.HandleFunc("GET /api/interviews/{id}", h.getInterview)
	mux.HandleFunc("POST /api/interviews/{id}/assessments", h.recordAssessment)
	mux.HandleFunc("POST /api/interviews/{id}/close", h.closeRound)

	mux.HandleFunc("POST /api/registrations", h.register)
	mux.HandleFunc("GET /api/registrations/{id}", h.getRegistration)
	mux.HandleFunc("POST /api/registrations/{id}/approve", h.approveRegistration)
	mux.HandleFunc("POST /api/registrations/{id}/reject", h.rejectRegistration)

	return mux
}

type handler struct {
	ops    Lifecycle
	reads  Readers
	logger *log.Logger
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	if h.reads.Applications == nil {
		writeDisabled(w)
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	q := storage.ApplicationQuery{
		ApplicantID: r.URL.Query().Get("applicant_id"),
		Status:      model.ApplicationStatus(r.URL.Query().Get("status")),
		Limit:       limit + 1,
		Offset:      (page - 1) * limit,
	}
	if v := r.URL.Query().Get("job_posting_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid job_posting_id"})
			return
		}
		q.JobPostingID = uint(id)
	}

	apps, err := h.reads.Applications.List(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	hasMore := false
	if len(apps) > limit {
		hasMore = true
		apps = apps[:limit]
	}
	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Has-More", strconv.FormatBool(hasMore))
	writeJSON(w, http.StatusOK, apps)
}

func (h *handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	var req application.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.ops.SubmitApplication(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: res.Application})
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	if h.reads.Applications == nil {
		writeDisabled(w)
		return
	}
	number, ok := pathNumber(w, r)
	if !ok {
		return
	}
	app, err := h.reads.Applications.Get(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handler) applicationHistory(w http.ResponseWriter, r *http.Request) {
	if h.reads.Applications == nil {
		writeDisabled(w)
		return
	}
	number, ok := pathNumber(w, r)
	if !ok {
		return
	}
	events, err := h.reads.Applications.History(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handler) transitionApplication(w http.ResponseWriter, r *http.Request) {
	number, ok := pathNumber(w, r)
	if !ok {
		return
	}
	var req application.TransitionRequest
	if !decode(w, r, &req) {
		return
	}
	req.ApplicationNumber = number
	res, err := h.ops.TransitionApplication(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: res.Application, NotificationID: receiptID(res.Receipt)})
}

func (h *handler) scheduleRound(w http.ResponseWriter, r *http.Request) {
	var req interview.ScheduleRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.ops.ScheduleRound(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: res.Session, NotificationID: receiptID(res.Receipt)})
}

func (h *handler) getInterview(w http.ResponseWriter, r *http.Request) {
	if h.reads.Interviews == nil {
		writeDisabled(w)
		return
	}
	id := r.PathValue("id")
	session, err := h.reads.Interviews.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	assessments, err := h.reads.Interviews.Assessments(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interviewDetail{InterviewSession: session, Assessments: assessments})
}

func (h *handler) recordAssessment(w http.ResponseWriter, r *http.Request) {
	var req interview.AssessmentRequest
	if !decode(w, r, &req) {
		return
	}
	req.InterviewID = r.PathValue("id")
	a, err := h.ops.RecordAssessment(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: a})
}

func (h *handler) closeRound(w http.ResponseWriter, r *http.Request) {
	var req interview.CloseRequest
	if !decode(w, r, &req) {
		return
	}
	req.InterviewID = r.PathValue("id")
	res, err := h.ops.CloseRound(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: res, NotificationID: receiptID(res.Receipt)})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.ops.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: res.Registration, NotificationID: receiptID(res.Receipt)})
}

func (h *handler) getRegistration(w http.ResponseWriter, r *http.Request) {
	if h.reads.Registrations == nil {
		writeDisabled(w)
		return
	}
	reg, err := h.reads.Registrations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *handler) approveRegistration(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.ops.ApproveRegistration(r.Context(), r.PathValue("id"), req.ActorID, req.Narration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: res.Registration, NotificationID: receiptID(res.Receipt)})
}

func (h *handler) rejectRegistration(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.ops.RejectRegistration(r.Context(), r.PathValue("id"), req.ActorID, req.Narration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: res.Registration, NotificationID: receiptID(res.Receipt)})
}

// writeError 按错误类别映射状态码，未知错误视为 503。
func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusServiceUnavailable {
		h.logger.Printf("request failed: %v", err)
	}
	resp := errorResponse{Error: "service unavailable"}
	var de *apperr.Error
	if errors.As(err, &de) {
		resp.Code = string(de.Code)
		resp.Error = de.Msg
		// 瞬时错误不向调用方暴露底层原因。
		if de.Kind != apperr.KindUnavailable && de.Detail != "" {
			resp.Error = de.Msg + ": " + de.Detail
		}
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return false
	}
	return true
}

func pathNumber(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("number"), 10, 64)
	if err != nil || n == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid application number"})
		return 0, false
	}
	return uint(n), true
}

func receiptID(r *notifier.Receipt) string {
	if r == nil {
		return ""
	}
	return r.ID
}

func writeDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "query disabled"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
