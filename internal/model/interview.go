package model

import "time"

// RoundStatus 面试轮次状态：SCHEDULED 或关闭时的结果。
type RoundStatus string

const (
	RoundScheduled           RoundStatus = "SCHEDULED"
	RoundRejected            RoundStatus = "REJECTED"
	RoundProceedNext         RoundStatus = "PROCEED_NEXT_ROUND"
	RoundProceedToRecruiter  RoundStatus = "PROCEED_TO_RECRUITER"
	RoundAcceptedByRecruiter RoundStatus = "ACCEPTED_BY_RECRUITER"
)

// IsOutcome 判断是否为合法的关闭结果。
func (s RoundStatus) IsOutcome() bool {
	switch s {
	case RoundRejected, RoundProceedNext, RoundProceedToRecruiter, RoundAcceptedByRecruiter:
		return true
	default:
		return false
	}
}

// PermitsNextRound 关闭结果是否允许安排下一轮。
// PROCEED_TO_RECRUITER 把候选人交给招聘者决定，不再开新轮次。
func (s RoundStatus) PermitsNextRound() bool {
	return s == RoundProceedNext
}

func (s RoundStatus) String() string { return string(s) }

// InterviewSession 一轮面试。同一 (申请人, 职位) 的轮次号严格递增。
type InterviewSession struct {
	ID               string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	JobPostingID     uint        `gorm:"not null;uniqueIndex:idx_interview_round,priority:2" json:"job_posting_id"`
	ApplicantID      string      `gorm:"not null;uniqueIndex:idx_interview_round,priority:1" json:"applicant_id"`
	RoundNumber      int         `gorm:"not null;uniqueIndex:idx_interview_round,priority:3" json:"round_number"`
	InterviewerName  string      `json:"interviewer_name"`
	ScheduledAt      time.Time   `json:"scheduled_at"`
	ScheduledBy      string      `json:"scheduled_by"`
	Status           RoundStatus `gorm:"not null" json:"status"`
	ClosingNarration string      `json:"closing_narration,omitempty"`
	ClosedBy         string      `json:"closed_by,omitempty"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// IsClosed 轮次是否已给出结果。
func (i InterviewSession) IsClosed() bool {
	return i.Status != RoundScheduled
}

// AssessmentType 评估维度目录。
type AssessmentType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// Assessment 某轮面试在某个维度上的评估，持久化后不可修改。
type Assessment struct {
	InterviewID      string    `gorm:"primaryKey;type:varchar(36)" json:"interview_id"`
	AssessmentTypeID uint      `gorm:"primaryKey" json:"assessment_type_id"`
	Narration        string    `gorm:"not null" json:"narration"`
	Score            int       `json:"score"`
	CreatedAt        time.Time `json:"created_at"`
}

// 评分区间。
const (
	MinScore = 0
	MaxScore = 5
)
