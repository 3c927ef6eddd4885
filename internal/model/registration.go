package model

import (
	"time"

	"gorm.io/datatypes"
)

// AccountKind 注册账号类型。
type AccountKind string

const (
	AccountSeeker    AccountKind = "SEEKER"
	AccountRecruiter AccountKind = "RECRUITER"
)

func (k AccountKind) IsValid() bool {
	return k == AccountSeeker || k == AccountRecruiter
}

// Registration 求职者或招聘者的注册审批记录。
// Approved 与 Cancelled 互斥，任一置位后记录即为终态。
type Registration struct {
	ID                string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind              AccountKind `gorm:"not null" json:"kind"`
	Name              string      `json:"name"`
	Email             string      `gorm:"uniqueIndex;not null" json:"email"`
	Approved          bool        `json:"approved"`
	Cancelled         bool        `json:"cancelled"`
	DecisionNarration string      `json:"decision_narration,omitempty"`
	DecidedBy         string      `json:"decided_by,omitempty"`
	DecidedAt         *time.Time  `json:"decided_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// IsDecided 是否已审批或已驳回。
func (r Registration) IsDecided() bool {
	return r.Approved || r.Cancelled
}

// DeliveryStatus 通知投递结果。
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
	DeliveryDropped DeliveryStatus = "DROPPED"
)

// DeliveryRecord 通知投递日志，仅供观察，不反向影响状态机。
type DeliveryRecord struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	ReceiptID string            `gorm:"type:varchar(36);index" json:"receipt_id"`
	Kind      string            `gorm:"index" json:"kind"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Status    DeliveryStatus    `json:"status"`
	Error     string            `json:"error,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
