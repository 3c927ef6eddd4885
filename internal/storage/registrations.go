package storage

import (
	"context"
	"fmt"
	"time"

	"hirepath/internal/model"
)

// RegistrationDecision 审批或驳回时写入的字段。
type RegistrationDecision struct {
	Approved  bool
	Narration string
	DecidedBy string
	DecidedAt time.Time
}

// CreateRegistration 新增注册记录；邮箱重复时返回 ErrDuplicate。
func (s *Store) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	if err := s.db.WithContext(ctx).Create(reg).Error; err != nil {
		return fmt.Errorf("create registration: %w", translate(err))
	}
	return nil
}

// GetRegistration 根据 ID 获取注册记录。
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	if err := s.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get registration %s: %w", id, translate(err))
	}
	return &reg, nil
}

// DecideRegistration 仅在两个标志都未置位时写入决定，否则返回 ErrStale。
func (s *Store) DecideRegistration(ctx context.Context, id string, d RegistrationDecision) (*model.Registration, error) {
	decidedAt := d.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&model.Registration{}).
		Where("id = ? AND approved = ? AND cancelled = ?", id, false, false).
		Updates(map[string]any{
			"approved":           d.Approved,
			"cancelled":          !d.Approved,
			"decision_narration": d.Narration,
			"decided_by":         d.DecidedBy,
			"decided_at":         decidedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("decide registration %s: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("decide registration %s: %w", id, ErrStale)
	}
	return s.GetRegistration(ctx, id)
}
