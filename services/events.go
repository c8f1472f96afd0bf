package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"content-approval-api/models"
)

type EventType string

const (
	EventRequested EventType = "approval.requested"
	EventApproved  EventType = "approval.approved"
	EventRejected  EventType = "approval.rejected"
	EventCancelled EventType = "approval.cancelled"
	EventCommented EventType = "approval.commented"
)

// Event describes a committed change of the approval workflow.
type Event struct {
	Type       EventType
	ActorID    string
	Request    *models.ApprovalRequest
	Action     *models.ApprovalAction
	OccurredAt time.Time
}

// Publisher receives workflow events after the change is committed. A
// failing publisher never undoes the change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// LogPublisher writes one line per event.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) Publish(_ context.Context, event Event) error {
	logf := log.Printf
	if p.Logger != nil {
		logf = p.Logger.Printf
	}
	requestID, status := "", models.ApprovalStatus("")
	if event.Request != nil {
		requestID, status = event.Request.ID, event.Request.Status
	}
	logf("approval event type=%s request=%s status=%s actor=%s", event.Type, requestID, status, event.ActorID)
	return nil
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MailSender is satisfied by config.Mailer.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

// UserLookup resolves notification recipients.
type UserLookup interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindPost(ctx context.Context, id string) (*models.Post, error)
}

// MailPublisher notifies the requester of decisions and the approver
// mailbox of new requests.
type MailPublisher struct {
	mailer         MailSender
	users          UserLookup
	approverEmails []string
}

func NewMailPublisher(mailer MailSender, users UserLookup, approverEmails []string) *MailPublisher {
	return &MailPublisher{mailer: mailer, users: users, approverEmails: approverEmails}
}

func (p *MailPublisher) Publish(ctx context.Context, event Event) error {
	if event.Request == nil {
		return nil
	}

	title := event.Request.PostID
	if post, err := p.users.FindPost(ctx, event.Request.PostID); err == nil && strings.TrimSpace(post.Title) != "" {
		title = post.Title
	}

	switch event.Type {
	case EventRequested:
		if len(p.approverEmails) == 0 {
			return nil
		}
		message := fmt.Sprintf("A new approval request was submitted for \"%s\".", title)
		if event.Request.RequestMessage != nil {
			message += "\n\n" + *event.Request.RequestMessage
		}
		return p.send(p.approverEmails, "Approval requested: "+title, "Editors", message)

	case EventApproved, EventRejected:
		requester, err := p.users.FindUser(ctx, event.Request.RequesterID)
		if err != nil {
			return fmt.Errorf("failed to resolve requester %s: %w", event.Request.RequesterID, err)
		}
		if strings.TrimSpace(requester.Email) == "" {
			return nil
		}
		verb := "approved and published"
		if event.Type == EventRejected {
			verb = "rejected"
		}
		message := fmt.Sprintf("Your post \"%s\" was %s.", title, verb)
		if event.Action != nil && event.Action.Comment != nil {
			message += "\n\nReviewer comment: " + *event.Action.Comment
		}
		subject := fmt.Sprintf("Post %s: %s", verb, title)
		return p.send([]string{requester.Email}, subject, requester.Name, message)
	}
	return nil
}

func (p *MailPublisher) send(to []string, subject, recipientName, message string) error {
	if err := p.mailer.SendMail(to, subject, buildNotificationHTML(subject, recipientName, message)); err != nil {
		return fmt.Errorf("notification email send failed (subject=%q to=%v): %w", subject, to, err)
	}
	return nil
}

func buildNotificationHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "there"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Hello %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
