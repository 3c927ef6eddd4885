package storage

import (
	"context"
	"fmt"
	"time"

	"hirepath/internal/model"

	"gorm.io/gorm"
)

// ApplicationQuery 申请列表过滤条件。
type ApplicationQuery struct {
	ApplicantID  string
	JobPostingID uint
	Status       model.ApplicationStatus
	Limit        int
	Offset       int
}

// CreateApplication 写入新申请；活跃申请唯一索引冲突时返回 ErrDuplicate。
func (s *Store) CreateApplication(ctx context.Context, app *model.JobApplication) error {
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("create application: %w", translate(err))
	}
	return nil
}

// GetApplication 根据申请编号获取申请。
func (s *Store) GetApplication(ctx context.Context, number uint) (*model.JobApplication, error) {
	var app model.JobApplication
	if err := s.db.WithContext(ctx).First(&app, "number = ?", number).Error; err != nil {
		return nil, fmt.Errorf("get application %d: %w", number, translate(err))
	}
	return &app, nil
}

// FindActiveApplication 返回申请人对职位的非终态申请。
// 未命中是常规路径，用 Find 避免 gorm 记录 record not found 日志。
func (s *Store) FindActiveApplication(ctx context.Context, applicantID string, postingID uint) (*model.JobApplication, error) {
	var app model.JobApplication
	res := s.db.WithContext(ctx).
		Where("applicant_id = ? AND job_posting_id = ?", applicantID, postingID).
		Where("status NOT IN ?", []model.ApplicationStatus{model.StatusAccepted, model.StatusRejected}).
		Order("number DESC").
		Limit(1).
		Find(&app)
	if res.Error != nil {
		return nil, fmt.Errorf("find active application: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("find active application: %w", ErrNotFound)
	}
	return &app, nil
}

// ListApplications 按提交时间倒序列出申请。
func (s *Store) ListApplications(ctx context.Context, q ApplicationQuery) ([]model.JobApplication, error) {
	query := s.db.WithContext(ctx).Model(&model.JobApplication{}).Order("submitted_at DESC, number DESC")
	if q.ApplicantID != "" {
		query = query.Where("applicant_id = ?", q.ApplicantID)
	}
	if q.JobPostingID != 0 {
		query = query.Where("job_posting_id = ?", q.JobPostingID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	var apps []model.JobApplication
	if err := query.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// TransitionApplication 在一个事务内以 from 状态为条件更新申请并写入迁移记录。
// 条件未命中时返回 ErrStale。
func (s *Store) TransitionApplication(ctx context.Context, number uint, from, to model.ApplicationStatus, event model.ApplicationEvent) (*model.JobApplication, error) {
	var app model.JobApplication
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionTx(tx, number, from, to, event); err != nil {
			return err
		}
		return translate(tx.First(&app, "number = ?", number).Error)
	})
	if err != nil {
		return nil, fmt.Errorf("transition application %d: %w", number, err)
	}
	return &app, nil
}

func transitionTx(tx *gorm.DB, number uint, from, to model.ApplicationStatus, event model.ApplicationEvent) error {
	now := time.Now().UTC()
	res := tx.Model(&model.JobApplication{}).
		Where("number = ? AND status = ?", number, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}

	event.ApplicationNumber = number
	event.FromStatus = from
	event.ToStatus = to
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	return translate(tx.Create(&event).Error)
}

// ListApplicationEvents 按时间顺序返回申请的迁移记录。
func (s *Store) ListApplicationEvents(ctx context.Context, number uint) ([]model.ApplicationEvent, error) {
	var events []model.ApplicationEvent
	if err := s.db.WithContext(ctx).
		Where("application_number = ?", number).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list application events: %w", err)
	}
	return events, nil
}
