package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hirepath/internal/model"

	"gorm.io/gorm"
)

// InterviewClosure 关闭轮次时写入的字段。
type InterviewClosure struct {
	Outcome   model.RoundStatus
	Narration string
	ClosedBy  string
	ClosedAt  time.Time
	// Reject 非空时在同一事务内拒绝对应的活动申请。
	Reject *ApplicationRejection
}

// ApplicationRejection 随轮次关闭一并提交的申请拒绝。
type ApplicationRejection struct {
	Number uint
	From   model.ApplicationStatus
	Event  model.ApplicationEvent
}

// CreateInterview 写入新轮次；同一轮次号重复时返回 ErrDuplicate。
func (s *Store) CreateInterview(ctx context.Context, session *model.InterviewSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create interview: %w", translate(err))
	}
	return nil
}

// GetInterview 根据 ID 获取轮次。
func (s *Store) GetInterview(ctx context.Context, id string) (*model.InterviewSession, error) {
	var session model.InterviewSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get interview %s: %w", id, translate(err))
	}
	return &session, nil
}

// LatestRound 返回 (申请人, 职位) 轮次号最大的一轮。
func (s *Store) LatestRound(ctx context.Context, applicantID string, postingID uint) (*model.InterviewSession, error) {
	var session model.InterviewSession
	res := s.db.WithContext(ctx).
		Where("applicant_id = ? AND job_posting_id = ?", applicantID, postingID).
		Order("round_number DESC").
		Limit(1).
		Find(&session)
	if res.Error != nil {
		return nil, fmt.Errorf("latest round: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("latest round: %w", ErrNotFound)
	}
	return &session, nil
}

// ListRounds 按轮次号升序返回全部轮次。
func (s *Store) ListRounds(ctx context.Context, applicantID string, postingID uint) ([]model.InterviewSession, error) {
	var sessions []model.InterviewSession
	if err := s.db.WithContext(ctx).
		Where("applicant_id = ? AND job_posting_id = ?", applicantID, postingID).
		Order("round_number ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return sessions, nil
}

// CloseInterview 以 SCHEDULED 为条件关闭轮次，已关闭时返回 ErrStale。
// 带 Reject 时轮次与申请同时提交或同时回滚，申请状态已变化时返回 ErrStaleApplication。
func (s *Store) CloseInterview(ctx context.Context, id string, c InterviewClosure) (*model.InterviewSession, error) {
	closedAt := c.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	var session model.InterviewSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.InterviewSession{}).
			Where("id = ? AND status = ?", id, model.RoundScheduled).
			Updates(map[string]any{
				"status":            c.Outcome,
				"closing_narration": c.Narration,
				"closed_by":         c.ClosedBy,
				"closed_at":         closedAt,
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		if r := c.Reject; r != nil {
			if err := transitionTx(tx, r.Number, r.From, model.StatusRejected, r.Event); err != nil {
				if errors.Is(err, ErrStale) {
					return ErrStaleApplication
				}
				return fmt.Errorf("reject application %d: %w", r.Number, err)
			}
		}
		return translate(tx.First(&session, "id = ?", id).Error)
	})
	if err != nil {
		return nil, fmt.Errorf("close interview %s: %w", id, err)
	}
	return &session, nil
}

// CreateAssessmentType 新增评估维度。
func (s *Store) CreateAssessmentType(ctx context.Context, at *model.AssessmentType) error {
	if err := s.db.WithContext(ctx).Create(at).Error; err != nil {
		return fmt.Errorf("create assessment type: %w", translate(err))
	}
	return nil
}

// GetAssessmentType 根据 ID 获取评估维度。
func (s *Store) GetAssessmentType(ctx context.Context, id uint) (*model.AssessmentType, error) {
	var at model.AssessmentType
	if err := s.db.WithContext(ctx).First(&at, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get assessment type %d: %w", id, translate(err))
	}
	return &at, nil
}

// CreateAssessment 写入评估；同一维度重复时复合主键冲突返回 ErrDuplicate。
func (s *Store) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create assessment: %w", translate(err))
	}
	return nil
}

// ListAssessments 返回某轮面试的全部评估。
func (s *Store) ListAssessments(ctx context.Context, interviewID string) ([]model.Assessment, error) {
	var list []model.Assessment
	if err := s.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("assessment_type_id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return list, nil
}
