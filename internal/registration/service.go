// Package registration 实现管理员对求职者、招聘者账号的审批流程。
package registration

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"hirepath/internal/apperr"
	"hirepath/internal/model"
	"hirepath/internal/storage"

	"github.com/google/uuid"
)

// Store 定义审批流程所需的持久化接口。
type Store interface {
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	DecideRegistration(ctx context.Context, id string, d storage.RegistrationDecision) (*model.Registration, error)
}

// Request 新建账号注册记录的请求。
type Request struct {
	Kind  model.AccountKind `json:"kind"`
	Name  string            `json:"name"`
	Email string            `json:"email"`
}

// Service 负责注册记录的创建与一次性审批。
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewService 创建审批服务。
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, newID: uuid.NewString}
}

// Register 校验请求并写入待审批记录。
func (s *Service) Register(ctx context.Context, req Request) (model.Registration, error) {
	kind := model.AccountKind(strings.ToUpper(strings.TrimSpace(string(req.Kind))))
	if !kind.IsValid() {
		return model.Registration{}, apperr.ErrInvalidAccount.Withf("unsupported kind %q", req.Kind)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Registration{}, apperr.ErrInvalidAccount.Withf("name required")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return model.Registration{}, apperr.ErrInvalidAccount.Withf("email required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return model.Registration{}, apperr.ErrInvalidAccount.Withf("invalid email").Wrap(err)
	}

	reg := model.Registration{
		ID:        s.newID(),
		Kind:      kind,
		Name:      name,
		Email:     strings.ToLower(addr.Address),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateRegistration(ctx, &reg); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.Registration{}, apperr.ErrDuplicateAccount.Withf("%s", reg.Email)
		}
		return model.Registration{}, apperr.Unavailable("create registration", err)
	}
	return reg, nil
}

// Approve 审批通过，说明可选。
func (s *Service) Approve(ctx context.Context, registrationID, actorID, narration string) (model.Registration, error) {
	return s.decide(ctx, registrationID, actorID, narration, true)
}

// Reject 驳回，必须给出理由。
func (s *Service) Reject(ctx context.Context, registrationID, actorID, narration string) (model.Registration, error) {
	if strings.TrimSpace(narration) == "" {
		return model.Registration{}, apperr.ErrReasonRequired
	}
	return s.decide(ctx, registrationID, actorID, narration, false)
}

// Get 根据 ID 读取注册记录。
func (s *Service) Get(ctx context.Context, registrationID string) (model.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Registration{}, apperr.ErrNotFound.Withf("registration %s", registrationID)
		}
		return model.Registration{}, apperr.Unavailable("load registration", err)
	}
	return *reg, nil
}

func (s *Service) decide(ctx context.Context, registrationID, actorID, narration string, approve bool) (model.Registration, error) {
	actor := strings.TrimSpace(actorID)
	if actor == "" {
		return model.Registration{}, apperr.ErrActorRequired
	}

	current, err := s.Get(ctx, registrationID)
	if err != nil {
		return model.Registration{}, err
	}
	if current.IsDecided() {
		return model.Registration{}, alreadyDecided(current)
	}

	decided, err := s.store.DecideRegistration(ctx, current.ID, storage.RegistrationDecision{
		Approved:  approve,
		Narration: strings.TrimSpace(narration),
		DecidedBy: actor,
		DecidedAt: s.now().UTC(),
	})
	if err != nil {
		// 条件更新未命中：另一个请求已先行做出决定。
		if errors.Is(err, storage.ErrStale) {
			return model.Registration{}, apperr.ErrAlreadyDecided.Withf("registration %s", current.ID)
		}
		return model.Registration{}, apperr.Unavailable("decide registration", err)
	}
	return *decided, nil
}

func alreadyDecided(reg model.Registration) error {
	state := "approved"
	if reg.Cancelled {
		state = "rejected"
	}
	return apperr.ErrAlreadyDecided.Withf("registration %s already %s by %s", reg.ID, state, reg.DecidedBy)
}
