// Package application 管理单个求职申请从提交到终态的状态机。
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"hirepath/internal/apperr"
	"hirepath/internal/model"
	"hirepath/internal/storage"
)

// Store 定义状态机所需的持久化接口。
type Store interface {
	GetPosting(ctx context.Context, id uint) (*model.JobPosting, error)
	FindActiveApplication(ctx context.Context, applicantID string, postingID uint) (*model.JobApplication, error)
	CreateApplication(ctx context.Context, app *model.JobApplication) error
	GetApplication(ctx context.Context, number uint) (*model.JobApplication, error)
	ListApplications(ctx context.Context, q storage.ApplicationQuery) ([]model.JobApplication, error)
	TransitionApplication(ctx context.Context, number uint, from, to model.ApplicationStatus, event model.ApplicationEvent) (*model.JobApplication, error)
	ListApplicationEvents(ctx context.Context, number uint) ([]model.ApplicationEvent, error)
}

// SubmitRequest 提交申请的参数。
type SubmitRequest struct {
	JobPostingID     uint    `json:"job_posting_id"`
	ApplicantID      string  `json:"applicant_id"`
	ResumeRef        string  `json:"resume_ref"`
	CoverLetterRef   *string `json:"cover_letter_ref,omitempty"`
	FitJustification string  `json:"fit_justification"`
}

// TransitionRequest 状态迁移参数，操作者身份显式传入。
type TransitionRequest struct {
	ApplicationNumber uint                    `json:"application_number"`
	NewStatus         model.ApplicationStatus `json:"new_status"`
	ActorID           string                  `json:"actor_id"`
	Narration         string                  `json:"narration,omitempty"`
}

// Service 实现申请状态机，本身不持有跨请求的可变状态。
type Service struct {
	store Store
	now   func() time.Time
}

// NewService 创建申请状态机。
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit 校验并创建 APPLIED 状态的新申请。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (model.JobApplication, error) {
	applicant := strings.TrimSpace(req.ApplicantID)
	if applicant == "" {
		return model.JobApplication{}, apperr.ErrApplicantRequired
	}
	resume := strings.TrimSpace(req.ResumeRef)
	if resume == "" {
		return model.JobApplication{}, apperr.ErrMissingResume
	}

	posting, err := s.store.GetPosting(ctx, req.JobPostingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.JobApplication{}, apperr.ErrNotFound.Withf("job posting %d", req.JobPostingID)
		}
		return model.JobApplication{}, apperr.Unavailable("load job posting", err)
	}
	now := s.now().UTC()
	if posting.Deadline != nil && posting.Deadline.Before(now) {
		return model.JobApplication{}, apperr.ErrDeadlinePassed.Withf("deadline %s", posting.Deadline.UTC().Format(time.RFC3339))
	}

	if existing, err := s.store.FindActiveApplication(ctx, applicant, req.JobPostingID); err == nil {
		return model.JobApplication{}, apperr.ErrDuplicateApplication.Withf("application %d is %s", existing.Number, existing.Status)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.JobApplication{}, apperr.Unavailable("check active application", err)
	}

	app := model.JobApplication{
		JobPostingID:     req.JobPostingID,
		ApplicantID:      applicant,
		SubmittedAt:      now,
		Status:           model.StatusApplied,
		ResumeRef:        resume,
		CoverLetterRef:   normalizeRef(req.CoverLetterRef),
		FitJustification: strings.TrimSpace(req.FitJustification),
	}
	if err := s.store.CreateApplication(ctx, &app); err != nil {
		// 并发提交时前置检查可能放行，以唯一索引的结果为准。
		if errors.Is(err, storage.ErrDuplicate) {
			return model.JobApplication{}, apperr.ErrDuplicateApplication.Wrap(err)
		}
		return model.JobApplication{}, apperr.Unavailable("create application", err)
	}
	return app, nil
}

// Transition 按迁移表校验并提交状态变更，返回更新后的申请。
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (model.JobApplication, error) {
	if !req.NewStatus.IsValid() {
		return model.JobApplication{}, apperr.ErrInvalidStatus.Withf("%q", req.NewStatus)
	}
	actor := strings.TrimSpace(req.ActorID)
	if actor == "" {
		return model.JobApplication{}, apperr.ErrActorRequired
	}

	current, err := s.Get(ctx, req.ApplicationNumber)
	if err != nil {
		return model.JobApplication{}, err
	}
	if err := CheckTransition(current.Status, req.NewStatus); err != nil {
		return model.JobApplication{}, err
	}

	event := model.ApplicationEvent{
		ActorID:   actor,
		Narration: strings.TrimSpace(req.Narration),
		CreatedAt: s.now().UTC(),
	}
	updated, err := s.store.TransitionApplication(ctx, current.Number, current.Status, req.NewStatus, event)
	if err != nil {
		if errors.Is(err, storage.ErrStale) {
			return model.JobApplication{}, apperr.ErrConcurrentUpdate.Withf("application %d", current.Number)
		}
		return model.JobApplication{}, apperr.Unavailable("commit transition", err)
	}
	return *updated, nil
}

// Get 根据申请编号读取申请。
func (s *Service) Get(ctx context.Context, number uint) (model.JobApplication, error) {
	app, err := s.store.GetApplication(ctx, number)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.JobApplication{}, apperr.ErrNotFound.Withf("application %d", number)
		}
		return model.JobApplication{}, apperr.Unavailable("load application", err)
	}
	return *app, nil
}

// FindActive 返回 (申请人, 职位) 的非终态申请。
func (s *Service) FindActive(ctx context.Context, applicantID string, postingID uint) (model.JobApplication, error) {
	app, err := s.store.FindActiveApplication(ctx, applicantID, postingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.JobApplication{}, apperr.ErrNotFound.Withf("active application for %s on posting %d", applicantID, postingID)
		}
		return model.JobApplication{}, apperr.Unavailable("find active application", err)
	}
	return *app, nil
}

// List 按条件列出申请，limit 默认 20、上限 100。
func (s *Service) List(ctx context.Context, q storage.ApplicationQuery) ([]model.JobApplication, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, apperr.ErrInvalidStatus.Withf("%q", q.Status)
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	apps, err := s.store.ListApplications(ctx, q)
	if err != nil {
		return nil, apperr.Unavailable("list applications", err)
	}
	return apps, nil
}

// History 返回申请的全部迁移记录。
func (s *Service) History(ctx context.Context, number uint) ([]model.ApplicationEvent, error) {
	if _, err := s.Get(ctx, number); err != nil {
		return nil, err
	}
	events, err := s.store.ListApplicationEvents(ctx, number)
	if err != nil {
		return nil, apperr.Unavailable("list application events", err)
	}
	return events, nil
}

func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
