package notifier

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"hirepath/internal/model"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind 通知事件类型。
type Kind string

const (
	KindAccountStatus      Kind = "account_status"
	KindApplicationStatus  Kind = "application_status"
	KindInterviewOutcome   Kind = "interview_outcome"
	KindInterviewScheduled Kind = "interview_scheduled"
	KindCredentials        Kind = "credentials_issued"
)

// Message 交给邮件协作方的内容：收件人、主题与 HTML 正文。
type Message struct {
	Kind      Kind
	Recipient string
	Subject   string
	BodyHTML  string
	Metadata  map[string]any
}

// Notification 可渲染为 Message 的生命周期事件。
type Notification interface {
	Render() (Message, error)
}

// AccountStatusChanged 注册审批结果。
type AccountStatusChanged struct {
	Name      string
	Email     string
	Account   model.AccountKind
	Approved  bool
	Narration string
}

func (e AccountStatusChanged) Render() (Message, error) {
	verdict, subject := "approved", "Your account has been approved"
	if !e.Approved {
		verdict, subject = "rejected", "Your account registration was not approved"
	}
	paragraphs := []string{
		fmt.Sprintf("Dear %s,", e.Name),
		fmt.Sprintf("Your %s account registration has been %s.", accountLabel(e.Account), verdict),
	}
	if e.Narration != "" {
		paragraphs = append(paragraphs, "Note from the administrator: "+e.Narration)
	}
	return build(KindAccountStatus, e.Email, subject, map[string]any{"approved": e.Approved, "account": string(e.Account)}, paragraphs...)
}

// ApplicationStatusChanged 申请状态变化。
type ApplicationStatusChanged struct {
	ApplicantName     string
	Email             string
	JobTitle          string
	ApplicationNumber uint
	Status            model.ApplicationStatus
	Narration         string
}

func (e ApplicationStatusChanged) Render() (Message, error) {
	subject := fmt.Sprintf("Application update: %s", e.JobTitle)
	paragraphs := []string{
		fmt.Sprintf("Dear %s,", e.ApplicantName),
		fmt.Sprintf("Your application #%d for %s %s.", e.ApplicationNumber, e.JobTitle, statusPhrase(e.Status)),
	}
	if e.Narration != "" {
		paragraphs = append(paragraphs, "Comment: "+e.Narration)
	}
	meta := map[string]any{"application_number": e.ApplicationNumber, "status": string(e.Status)}
	return build(KindApplicationStatus, e.Email, subject, meta, paragraphs...)
}

// InterviewRoundClosed 面试轮次结论。
type InterviewRoundClosed struct {
	ApplicantName string
	Email         string
	JobTitle      string
	Round         int
	Outcome       model.RoundStatus
	Narration     string
}

func (e InterviewRoundClosed) Render() (Message, error) {
	subject := fmt.Sprintf("Interview round %d result: %s", e.Round, e.JobTitle)
	paragraphs := []string{
		fmt.Sprintf("Dear %s,", e.ApplicantName),
		fmt.Sprintf("Round %d of your interview for %s has concluded: %s.", e.Round, e.JobTitle, outcomePhrase(e.Outcome)),
	}
	if e.Narration != "" {
		paragraphs = append(paragraphs, "Interviewer notes: "+e.Narration)
	}
	meta := map[string]any{"round": e.Round, "outcome": string(e.Outcome)}
	return build(KindInterviewOutcome, e.Email, subject, meta, paragraphs...)
}

// InterviewRoundScheduled 新轮次安排。
type InterviewRoundScheduled struct {
	ApplicantName string
	Email         string
	JobTitle      string
	Round         int
	Interviewer   string
	ScheduledAt   time.Time
}

func (e InterviewRoundScheduled) Render() (Message, error) {
	subject := fmt.Sprintf("Interview round %d scheduled: %s", e.Round, e.JobTitle)
	when := e.ScheduledAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	paragraphs := []string{
		fmt.Sprintf("Dear %s,", e.ApplicantName),
		fmt.Sprintf("Round %d of your interview for %s is scheduled for %s with %s.", e.Round, e.JobTitle, when, e.Interviewer),
	}
	meta := map[string]any{"round": e.Round, "scheduled_at": e.ScheduledAt.UTC().Format(time.RFC3339)}
	return build(KindInterviewScheduled, e.Email, subject, meta, paragraphs...)
}

// CredentialsIssued 新账号登录凭据。
type CredentialsIssued struct {
	Name              string
	Email             string
	Account           model.AccountKind
	Login             string
	TemporaryPassword string
}

func (e CredentialsIssued) Render() (Message, error) {
	if e.TemporaryPassword == "" {
		return Message{}, fmt.Errorf("temporary password missing")
	}
	login := e.Login
	if login == "" {
		login = e.Email
	}
	paragraphs := []string{
		fmt.Sprintf("Dear %s,", e.Name),
		fmt.Sprintf("A %s account has been created for you.", accountLabel(e.Account)),
		"Login: " + login,
		"Temporary password: " + e.TemporaryPassword,
		"Please change your password after signing in.",
	}
	// 凭据不写入投递日志元数据。
	return build(KindCredentials, e.Email, "Your new account credentials", map[string]any{"account": string(e.Account)}, paragraphs...)
}

func build(kind Kind, recipient, subject string, meta map[string]any, paragraphs ...string) (Message, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(recipient))
	if err != nil {
		return Message{Kind: kind, Recipient: recipient, Subject: subject}, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	body, err := renderBody(subject, paragraphs...)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: kind, Recipient: addr.Address, Subject: subject, BodyHTML: body, Metadata: meta}, nil
}

// renderBody 以节点树生成 HTML，文本节点由 html.Render 负责转义。
func renderBody(heading string, paragraphs ...string) (string, error) {
	doc := &html.Node{Type: html.DocumentNode}
	root := element(atom.Html)
	body := element(atom.Body)

	h := element(atom.H2)
	h.AppendChild(&html.Node{Type: html.TextNode, Data: heading})
	body.AppendChild(h)
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		el := element(atom.P)
		el.AppendChild(&html.Node{Type: html.TextNode, Data: p})
		body.AppendChild(el)
	}
	root.AppendChild(body)
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func accountLabel(k model.AccountKind) string {
	switch k {
	case model.AccountRecruiter:
		return "recruiter"
	case model.AccountSeeker:
		return "job seeker"
	default:
		return "user"
	}
}

func statusPhrase(s model.ApplicationStatus) string {
	switch s {
	case model.StatusApplied:
		return "has been received"
	case model.StatusInProgress:
		return "is now in progress"
	case model.StatusHold:
		return "has been put on hold"
	case model.StatusAccepted:
		return "has been accepted"
	case model.StatusRejected:
		return "was not successful"
	default:
		return "changed to " + string(s)
	}
}

func outcomePhrase(o model.RoundStatus) string {
	switch o {
	case model.RoundRejected:
		return "unfortunately you will not proceed further"
	case model.RoundProceedNext:
		return "you proceed to the next round"
	case model.RoundProceedToRecruiter:
		return "you proceed to the recruiter"
	case model.RoundAcceptedByRecruiter:
		return "you have been accepted by the recruiter"
	default:
		return string(o)
	}
}
