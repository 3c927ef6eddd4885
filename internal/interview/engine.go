// Package interview 管理申请进入面试流程后的轮次、评估与轮次结论。
package interview

import (
	"context"
	"errors"
	"strings"
	"time"

	"hirepath/internal/apperr"
	"hirepath/internal/model"
	"hirepath/internal/storage"

	"github.com/google/uuid"
)

// Store 定义轮次引擎所需的持久化接口。
type Store interface {
	LatestRound(ctx context.Context, applicantID string, postingID uint) (*model.InterviewSession, error)
	ListRounds(ctx context.Context, applicantID string, postingID uint) ([]model.InterviewSession, error)
	CreateInterview(ctx context.Context, session *model.InterviewSession) error
	GetInterview(ctx context.Context, id string) (*model.InterviewSession, error)
	CloseInterview(ctx context.Context, id string, c storage.InterviewClosure) (*model.InterviewSession, error)
	GetAssessmentType(ctx context.Context, id uint) (*model.AssessmentType, error)
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	ListAssessments(ctx context.Context, interviewID string) ([]model.Assessment, error)
}

// ScheduleRequest 安排一轮面试。
type ScheduleRequest struct {
	JobPostingID    uint      `json:"job_posting_id"`
	ApplicantID     string    `json:"applicant_id"`
	RoundNumber     int       `json:"round_number"`
	InterviewerName string    `json:"interviewer_name"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	ActorID         string    `json:"actor_id"`
}

// AssessmentRequest 为某轮面试记录一个维度的评估。
type AssessmentRequest struct {
	InterviewID      string `json:"interview_id"`
	AssessmentTypeID uint   `json:"assessment_type_id"`
	Narration        string `json:"narration"`
	Score            int    `json:"score"`
}

// CloseRequest 关闭轮次并给出结论。
type CloseRequest struct {
	InterviewID      string            `json:"interview_id"`
	Outcome          model.RoundStatus `json:"outcome"`
	ClosingNarration string            `json:"closing_narration"`
	ActorID          string            `json:"actor_id"`
}

// Engine 实现轮次规则；跨申请状态的一致性由编排层负责。
type Engine struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewEngine 创建轮次引擎。
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now, newID: uuid.NewString}
}

// ScheduleRound 轮次号必须恰为已有最大轮次加一，且上一轮结论允许继续。
func (e *Engine) ScheduleRound(ctx context.Context, req ScheduleRequest) (model.InterviewSession, error) {
	applicant := strings.TrimSpace(req.ApplicantID)
	if applicant == "" {
		return model.InterviewSession{}, apperr.ErrApplicantRequired
	}
	interviewer := strings.TrimSpace(req.InterviewerName)
	if interviewer == "" {
		return model.InterviewSession{}, apperr.ErrInterviewerRequired
	}
	if req.ScheduledAt.IsZero() {
		return model.InterviewSession{}, apperr.ErrScheduleRequired
	}
	actor := strings.TrimSpace(req.ActorID)
	if actor == "" {
		return model.InterviewSession{}, apperr.ErrActorRequired
	}

	expected := 1
	latest, err := e.store.LatestRound(ctx, applicant, req.JobPostingID)
	switch {
	case err == nil:
		expected = latest.RoundNumber + 1
	case errors.Is(err, storage.ErrNotFound):
	default:
		return model.InterviewSession{}, apperr.Unavailable("load latest round", err)
	}
	if req.RoundNumber != expected {
		return model.InterviewSession{}, apperr.ErrRoundOutOfOrder.Withf("expected round %d, got %d", expected, req.RoundNumber)
	}
	if latest != nil && !latest.Status.PermitsNextRound() {
		return model.InterviewSession{}, apperr.ErrRoundNotPermitted.Withf("round %d is %s", latest.RoundNumber, latest.Status)
	}

	session := model.InterviewSession{
		ID:              e.newID(),
		JobPostingID:    req.JobPostingID,
		ApplicantID:     applicant,
		RoundNumber:     req.RoundNumber,
		InterviewerName: interviewer,
		ScheduledAt:     req.ScheduledAt.UTC(),
		ScheduledBy:     actor,
		Status:          model.RoundScheduled,
		CreatedAt:       e.now().UTC(),
	}
	if err := e.store.CreateInterview(ctx, &session); err != nil {
		// 并发安排同一轮次时以唯一索引为准。
		if errors.Is(err, storage.ErrDuplicate) {
			return model.InterviewSession{}, apperr.ErrRoundOutOfOrder.Wrap(err)
		}
		return model.InterviewSession{}, apperr.Unavailable("create interview", err)
	}
	return session, nil
}

// RecordAssessment 在轮次关闭前追加评估，同一维度只能记录一次。
func (e *Engine) RecordAssessment(ctx context.Context, req AssessmentRequest) (model.Assessment, error) {
	if req.Score < model.MinScore || req.Score > model.MaxScore {
		return model.Assessment{}, apperr.ErrScoreOutOfRange.Withf("got %d", req.Score)
	}
	narration := strings.TrimSpace(req.Narration)
	if narration == "" {
		return model.Assessment{}, apperr.ErrNarrationRequired
	}

	session, err := e.Get(ctx, req.InterviewID)
	if err != nil {
		return model.Assessment{}, err
	}
	if session.IsClosed() {
		return model.Assessment{}, apperr.ErrAlreadyClosed.Withf("round %d is %s", session.RoundNumber, session.Status)
	}
	if _, err := e.store.GetAssessmentType(ctx, req.AssessmentTypeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Assessment{}, apperr.ErrNotFound.Withf("assessment type %d", req.AssessmentTypeID)
		}
		return model.Assessment{}, apperr.Unavailable("load assessment type", err)
	}

	existing, err := e.store.ListAssessments(ctx, session.ID)
	if err != nil {
		return model.Assessment{}, apperr.Unavailable("list assessments", err)
	}
	for _, a := range existing {
		if a.AssessmentTypeID == req.AssessmentTypeID {
			return model.Assessment{}, apperr.ErrDuplicateAssessmentType.Withf("type %d", req.AssessmentTypeID)
		}
	}

	assessment := model.Assessment{
		InterviewID:      session.ID,
		AssessmentTypeID: req.AssessmentTypeID,
		Narration:        narration,
		Score:            req.Score,
		CreatedAt:        e.now().UTC(),
	}
	if err := e.store.CreateAssessment(ctx, &assessment); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.Assessment{}, apperr.ErrDuplicateAssessmentType.Wrap(err)
		}
		return model.Assessment{}, apperr.Unavailable("create assessment", err)
	}
	return assessment, nil
}

// CloseRound 写入轮次结论，重复关闭返回 AlreadyClosed。
func (e *Engine) CloseRound(ctx context.Context, req CloseRequest) (model.InterviewSession, error) {
	return e.close(ctx, req, nil)
}

// CloseRoundRejecting 以 REJECTED 关闭轮次，并在同一事务内把编号为 number 的申请从 from 迁移到 REJECTED。
// 任一步失败时两者都不提交，调用方可整体重试。
func (e *Engine) CloseRoundRejecting(ctx context.Context, req CloseRequest, number uint, from model.ApplicationStatus) (model.InterviewSession, error) {
	if req.Outcome != model.RoundRejected {
		return model.InterviewSession{}, apperr.ErrInvalidOutcome.Withf("%q cannot reject an application", req.Outcome)
	}
	return e.close(ctx, req, &storage.ApplicationRejection{Number: number, From: from})
}

func (e *Engine) close(ctx context.Context, req CloseRequest, reject *storage.ApplicationRejection) (model.InterviewSession, error) {
	if !req.Outcome.IsOutcome() {
		return model.InterviewSession{}, apperr.ErrInvalidOutcome.Withf("%q", req.Outcome)
	}
	actor := strings.TrimSpace(req.ActorID)
	if actor == "" {
		return model.InterviewSession{}, apperr.ErrActorRequired
	}

	session, err := e.Get(ctx, req.InterviewID)
	if err != nil {
		return model.InterviewSession{}, err
	}
	if session.IsClosed() {
		return model.InterviewSession{}, apperr.ErrAlreadyClosed.Withf("round %d is %s", session.RoundNumber, session.Status)
	}

	narration := strings.TrimSpace(req.ClosingNarration)
	closedAt := e.now().UTC()
	if reject != nil {
		reject.Event = model.ApplicationEvent{ActorID: actor, Narration: narration, CreatedAt: closedAt}
	}
	closed, err := e.store.CloseInterview(ctx, session.ID, storage.InterviewClosure{
		Outcome:   req.Outcome,
		Narration: narration,
		ClosedBy:  actor,
		ClosedAt:  closedAt,
		Reject:    reject,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrStaleApplication):
			return model.InterviewSession{}, apperr.ErrConcurrentUpdate.Withf("application %d", reject.Number)
		case errors.Is(err, storage.ErrStale):
			return model.InterviewSession{}, apperr.ErrAlreadyClosed.Withf("round %d", session.RoundNumber)
		}
		return model.InterviewSession{}, apperr.Unavailable("close interview", err)
	}
	return *closed, nil
}

// Get 根据 ID 读取轮次。
func (e *Engine) Get(ctx context.Context, id string) (model.InterviewSession, error) {
	session, err := e.store.GetInterview(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.InterviewSession{}, apperr.ErrNotFound.Withf("interview %s", id)
		}
		return model.InterviewSession{}, apperr.Unavailable("load interview", err)
	}
	return *session, nil
}

// Rounds 返回 (申请人, 职位) 的全部轮次。
func (e *Engine) Rounds(ctx context.Context, applicantID string, postingID uint) ([]model.InterviewSession, error) {
	rounds, err := e.store.ListRounds(ctx, applicantID, postingID)
	if err != nil {
		return nil, apperr.Unavailable("list rounds", err)
	}
	return rounds, nil
}

// Assessments 返回某轮面试的评估。
func (e *Engine) Assessments(ctx context.Context, interviewID string) ([]model.Assessment, error) {
	if _, err := e.Get(ctx, interviewID); err != nil {
		return nil, err
	}
	list, err := e.store.ListAssessments(ctx, interviewID)
	if err != nil {
		return nil, apperr.Unavailable("list assessments", err)
	}
	return list, nil
}
