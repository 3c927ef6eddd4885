package model

import "time"

// ApplicationStatus 求职申请状态，封闭枚举。
type ApplicationStatus string

const (
	StatusApplied    ApplicationStatus = "APPLIED"
	StatusInProgress ApplicationStatus = "IN_PROGRESS"
	StatusHold       ApplicationStatus = "HOLD"
	StatusAccepted   ApplicationStatus = "ACCEPTED"
	StatusRejected   ApplicationStatus = "REJECTED"
)

// ApplicationStatuses 列出全部状态。
var ApplicationStatuses = []ApplicationStatus{StatusApplied, StatusInProgress, StatusHold, StatusAccepted, StatusRejected}

// IsValid 判断是否为已知状态。
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case StatusApplied, StatusInProgress, StatusHold, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal 终态不允许再迁移。
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

func (s ApplicationStatus) String() string { return string(s) }

// JobPosting 职位发布，仅保留生命周期需要的字段。
type JobPosting struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `json:"title"`
	RecruiterID string     `gorm:"index" json:"recruiter_id"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobApplication 求职者针对某个职位的一次申请。
// - Number: 创建时分配的申请编号
// - 非终态申请在 (ApplicantID, JobPostingID) 上唯一，由部分唯一索引兜底
type JobApplication struct {
	Number           uint              `gorm:"primaryKey;autoIncrement" json:"number"`
	JobPostingID     uint              `gorm:"not null;index" json:"job_posting_id"`
	ApplicantID      string            `gorm:"not null;index" json:"applicant_id"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	Status           ApplicationStatus `gorm:"not null;index" json:"status"`
	ResumeRef        string            `gorm:"not null" json:"resume_ref"`
	CoverLetterRef   *string           `json:"cover_letter_ref,omitempty"`
	FitJustification string            `json:"fit_justification"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ApplicationEvent 记录一次已提交的状态迁移。
type ApplicationEvent struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ApplicationNumber uint              `gorm:"not null;index" json:"application_number"`
	FromStatus        ApplicationStatus `json:"from_status"`
	ToStatus          ApplicationStatus `json:"to_status"`
	ActorID           string            `json:"actor_id"`
	Narration         string            `json:"narration,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
