// Package lifecycle 串联申请状态机、面试轮次与注册审批，并在状态提交后投递通知。
package lifecycle

import (
	"context"
	"errors"
	"log"
	"os"

	"hirepath/internal/application"
	"hirepath/internal/apperr"
	"hirepath/internal/interview"
	"hirepath/internal/model"
	"hirepath/internal/notifier"
	"hirepath/internal/registration"
)

// Directory 解析通知所需的收件人与职位信息。
type Directory interface {
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	GetPosting(ctx context.Context, id uint) (*model.JobPosting, error)
}

// Dispatcher 非阻塞地投递通知。
type Dispatcher interface {
	Dispatch(n notifier.Notification) *notifier.Receipt
}

// ApplicationResult 申请操作结果，Receipt 为空表示未发送通知。
type ApplicationResult struct {
	Application model.JobApplication `json:"application"`
	Receipt     *notifier.Receipt    `json:"-"`
}

// RoundResult 轮次操作结果。轮次以 REJECTED 关闭时 Application 为同步拒绝后的申请。
type RoundResult struct {
	Session     model.InterviewSession `json:"session"`
	Application *model.JobApplication  `json:"application,omitempty"`
	Receipt     *notifier.Receipt      `json:"-"`
}

// RegistrationResult 注册操作结果。
type RegistrationResult struct {
	Registration model.Registration `json:"registration"`
	Receipt      *notifier.Receipt  `json:"-"`
}

// RegisterRequest 注册请求；提供临时密码时会发送登录凭据。
type RegisterRequest struct {
	registration.Request
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

// Orchestrator 先提交核心状态，成功后才解析收件人并投递通知。
// 通知失败或收件人解析失败只记日志，不影响已提交的结果。
type Orchestrator struct {
	apps       *application.Service
	interviews *interview.Engine
	accounts   *registration.Service
	directory  Directory
	dispatcher Dispatcher
	logger     *log.Logger
}

// NewOrchestrator 创建编排器，logger 为空时输出到标准输出。
func NewOrchestrator(apps *application.Service, interviews *interview.Engine, accounts *registration.Service, directory Directory, dispatcher Dispatcher, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(os.Stdout, "[lifecycle] ", log.LstdFlags)
	}
	return &Orchestrator{
		apps:       apps,
		interviews: interviews,
		accounts:   accounts,
		directory:  directory,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SubmitApplication 提交申请，不发送通知。
func (o *Orchestrator) SubmitApplication(ctx context.Context, req application.SubmitRequest) (ApplicationResult, error) {
	app, err := o.apps.Submit(ctx, req)
	if err != nil {
		return ApplicationResult{}, err
	}
	o.logger.Printf("application %d submitted applicant=%s posting=%d", app.Number, app.ApplicantID, app.JobPostingID)
	return ApplicationResult{Application: app}, nil
}

// TransitionApplication 迁移申请状态并通知申请人。
func (o *Orchestrator) TransitionApplication(ctx context.Context, req application.TransitionRequest) (ApplicationResult, error) {
	app, err := o.apps.Transition(ctx, req)
	if err != nil {
		return ApplicationResult{}, err
	}
	o.logger.Printf("application %d -> %s by %s", app.Number, app.Status, req.ActorID)
	return ApplicationResult{Application: app, Receipt: o.notifyApplicationStatus(ctx, app, req.Narration)}, nil
}

// ScheduleRound 仅当该申请人对该职位存在 IN_PROGRESS 申请时安排轮次。
func (o *Orchestrator) ScheduleRound(ctx context.Context, req interview.ScheduleRequest) (RoundResult, error) {
	app, err := o.apps.FindActive(ctx, req.ApplicantID, req.JobPostingID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return RoundResult{}, apperr.ErrApplicationNotInProgress.Withf("no active application for %s on posting %d", req.ApplicantID, req.JobPostingID)
		}
		return RoundResult{}, err
	}
	if app.Status != model.StatusInProgress {
		return RoundResult{}, apperr.ErrApplicationNotInProgress.Withf("application %d is %s", app.Number, app.Status)
	}

	session, err := o.interviews.ScheduleRound(ctx, req)
	if err != nil {
		return RoundResult{}, err
	}
	o.logger.Printf("round %d scheduled interview=%s application=%d", session.RoundNumber, session.ID, app.Number)

	res := RoundResult{Session: session}
	applicant, title, ok := o.resolve(ctx, session.ApplicantID, session.JobPostingID)
	if ok {
		res.Receipt = o.dispatcher.Dispatch(notifier.InterviewRoundScheduled{
			ApplicantName: applicant.Name,
			Email:         applicant.Email,
			JobTitle:      title,
			Round:         session.RoundNumber,
			Interviewer:   session.InterviewerName,
			ScheduledAt:   session.ScheduledAt,
		})
	}
	return res, nil
}

// RecordAssessment 记录评估，不发送通知。
func (o *Orchestrator) RecordAssessment(ctx context.Context, req interview.AssessmentRequest) (model.Assessment, error) {
	return o.interviews.RecordAssessment(ctx, req)
}

// CloseRound 关闭轮次；结论为 REJECTED 时在同一事务内拒绝对应的活动申请。
// 只发送一条轮次结论通知，不再额外发送申请状态通知。
func (o *Orchestrator) CloseRound(ctx context.Context, req interview.CloseRequest) (RoundResult, error) {
	var res RoundResult
	var err error
	if req.Outcome == model.RoundRejected {
		res, err = o.closeRejecting(ctx, req)
	} else {
		res.Session, err = o.interviews.CloseRound(ctx, req)
	}
	if err != nil {
		return RoundResult{}, err
	}
	session := res.Session
	o.logger.Printf("interview %s round %d closed %s by %s", session.ID, session.RoundNumber, session.Status, session.ClosedBy)

	applicant, title, ok := o.resolve(ctx, session.ApplicantID, session.JobPostingID)
	if ok {
		res.Receipt = o.dispatcher.Dispatch(notifier.InterviewRoundClosed{
			ApplicantName: applicant.Name,
			Email:         applicant.Email,
			JobTitle:      title,
			Round:         session.RoundNumber,
			Outcome:       session.Status,
			Narration:     session.ClosingNarration,
		})
	}
	return res, nil
}

func (o *Orchestrator) closeRejecting(ctx context.Context, req interview.CloseRequest) (RoundResult, error) {
	current, err := o.interviews.Get(ctx, req.InterviewID)
	if err != nil {
		return RoundResult{}, err
	}
	active, err := o.apps.FindActive(ctx, current.ApplicantID, current.JobPostingID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		// 申请已进入终态，只关闭轮次。
		session, err := o.interviews.CloseRound(ctx, req)
		return RoundResult{Session: session}, err
	case err != nil:
		return RoundResult{}, err
	}
	if err := application.CheckTransition(active.Status, model.StatusRejected); err != nil {
		return RoundResult{}, err
	}

	session, err := o.interviews.CloseRoundRejecting(ctx, req, active.Number, active.Status)
	if err != nil {
		return RoundResult{}, err
	}
	o.logger.Printf("application %d rejected by interview %s", active.Number, session.ID)

	app, err := o.apps.Get(ctx, active.Number)
	if err != nil {
		o.logger.Printf("reload application %d: %v", active.Number, err)
		app = active
		app.Status = model.StatusRejected
	}
	return RoundResult{Session: session, Application: &app}, nil
}

// Register 创建注册记录，提供临时密码时发送登录凭据。
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (RegistrationResult, error) {
	reg, err := o.accounts.Register(ctx, req.Request)
	if err != nil {
		return RegistrationResult{}, err
	}
	o.logger.Printf("registration %s created kind=%s", reg.ID, reg.Kind)

	res := RegistrationResult{Registration: reg}
	if req.TemporaryPassword != "" {
		res.Receipt = o.dispatcher.Dispatch(notifier.CredentialsIssued{
			Name:              reg.Name,
			Email:             reg.Email,
			Account:           reg.Kind,
			Login:             reg.Email,
			TemporaryPassword: req.TemporaryPassword,
		})
	}
	return res, nil
}

// ApproveRegistration 审批通过并通知申请人。
func (o *Orchestrator) ApproveRegistration(ctx context.Context, registrationID, actorID, narration string) (RegistrationResult, error) {
	reg, err := o.accounts.Approve(ctx, registrationID, actorID, narration)
	if err != nil {
		return RegistrationResult{}, err
	}
	o.logger.Printf("registration %s approved by %s", reg.ID, reg.DecidedBy)
	return RegistrationResult{Registration: reg, Receipt: o.notifyAccountStatus(reg)}, nil
}

// RejectRegistration 驳回并通知申请人。
func (o *Orchestrator) RejectRegistration(ctx context.Context, registrationID, actorID, narration string) (RegistrationResult, error) {
	reg, err := o.accounts.Reject(ctx, registrationID, actorID, narration)
	if err != nil {
		return RegistrationResult{}, err
	}
	o.logger.Printf("registration %s rejected by %s", reg.ID, reg.DecidedBy)
	return RegistrationResult{Registration: reg, Receipt: o.notifyAccountStatus(reg)}, nil
}

func (o *Orchestrator) notifyApplicationStatus(ctx context.Context, app model.JobApplication, narration string) *notifier.Receipt {
	applicant, title, ok := o.resolve(ctx, app.ApplicantID, app.JobPostingID)
	if !ok {
		return nil
	}
	return o.dispatcher.Dispatch(notifier.ApplicationStatusChanged{
		ApplicantName:     applicant.Name,
		Email:             applicant.Email,
		JobTitle:          title,
		ApplicationNumber: app.Number,
		Status:            app.Status,
		Narration:         narration,
	})
}

func (o *Orchestrator) notifyAccountStatus(reg model.Registration) *notifier.Receipt {
	return o.dispatcher.Dispatch(notifier.AccountStatusChanged{
		Name:      reg.Name,
		Email:     reg.Email,
		Account:   reg.Kind,
		Approved:  reg.Approved,
		Narration: reg.DecisionNarration,
	})
}

// resolve 查找申请人与职位标题；失败时记日志并跳过通知。
func (o *Orchestrator) resolve(ctx context.Context, applicantID string, postingID uint) (*model.Registration, string, bool) {
	applicant, err := o.directory.GetRegistration(ctx, applicantID)
	if err != nil {
		o.logger.Printf("skip notification: applicant %s: %v", applicantID, err)
		return nil, "", false
	}
	posting, err := o.directory.GetPosting(ctx, postingID)
	if err != nil {
		o.logger.Printf("skip notification: posting %d: %v", postingID, err)
		return nil, "", false
	}
	return applicant, posting.Title, true
}
