package notifier

import (
	"strings"
	"testing"
	"time"

	"hirepath/internal/model"
)

func TestRenderEscapesUserText(t *testing.T) {
	t.Parallel()

	msg, err := ApplicationStatusChanged{
		ApplicantName:     "Ana",
		Email:             "Ana <ana@example.com>",
		JobTitle:          "Backend Engineer",
		ApplicationNumber: 7,
		Status:            model.StatusRejected,
		Narration:         "<script>alert(1)</script>",
	}.Render()
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if msg.Recipient != "ana@example.com" {
		t.Fatalf("expected bare address, got %s", msg.Recipient)
	}
	if strings.Contains(msg.BodyHTML, "<script>") {
		t.Fatalf("expected narration escaped, got %s", msg.BodyHTML)
	}
	if !strings.Contains(msg.BodyHTML, "&lt;script&gt;") {
		t.Fatalf("expected escaped narration in body, got %s", msg.BodyHTML)
	}
	if !strings.Contains(msg.BodyHTML, "#7") || !strings.Contains(msg.BodyHTML, "was not successful") {
		t.Fatalf("body missing status wording: %s", msg.BodyHTML)
	}
	if msg.Kind != KindApplicationStatus || msg.Metadata["status"] != "REJECTED" {
		t.Fatalf("unexpected kind or metadata: %+v", msg)
	}
}

func TestRenderInvalidRecipient(t *testing.T) {
	t.Parallel()

	_, err := AccountStatusChanged{Name: "Ana", Email: "not-an-address", Approved: true}.Render()
	if err == nil {
		t.Fatalf("expected invalid recipient error")
	}
}

func TestRenderEachEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		name string
		n    Notification
		kind Kind
		want string
	}{
		{"approved", AccountStatusChanged{Name: "Ana", Email: "ana@example.com", Account: model.AccountSeeker, Approved: true}, KindAccountStatus, "job seeker account registration has been approved"},
		{"rejected", AccountStatusChanged{Name: "Bo", Email: "bo@example.com", Account: model.AccountRecruiter, Narration: "missing company"}, KindAccountStatus, "missing company"},
		{"outcome", InterviewRoundClosed{ApplicantName: "Ana", Email: "ana@example.com", JobTitle: "SRE", Round: 2, Outcome: model.RoundProceedNext}, KindInterviewOutcome, "Round 2"},
		{"scheduled", InterviewRoundScheduled{ApplicantName: "Ana", Email: "ana@example.com", JobTitle: "SRE", Round: 1, Interviewer: "Lee", ScheduledAt: at}, KindInterviewScheduled, "03 Jun 2024 14:30"},
		{"credentials", CredentialsIssued{Name: "Ana", Email: "ana@example.com", Account: model.AccountSeeker, TemporaryPassword: "s3cret"}, KindCredentials, "s3cret"},
	}
	for _, tc := range cases {
		msg, err := tc.n.Render()
		if err != nil {
			t.Fatalf("%s: Render error: %v", tc.name, err)
		}
		if msg.Kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s", tc.name, tc.kind, msg.Kind)
		}
		if !strings.Contains(msg.BodyHTML, tc.want) {
			t.Fatalf("%s: expected body to contain %q, got %s", tc.name, tc.want, msg.BodyHTML)
		}
		if !strings.HasPrefix(msg.BodyHTML, "<html>") {
			t.Fatalf("%s: expected html document, got %s", tc.name, msg.BodyHTML)
		}
	}
}

func TestCredentialsRequirePassword(t *testing.T) {
	t.Parallel()

	if _, err := (CredentialsIssued{Name: "Ana", Email: "ana@example.com"}).Render(); err == nil {
		t.Fatalf("expected error without temporary password")
	}
	msg, err := CredentialsIssued{Name: "Ana", Email: "ana@example.com", TemporaryPassword: "x1"}.Render()
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if _, ok := msg.Metadata["password"]; ok {
		t.Fatalf("password must not appear in metadata")
	}
}
