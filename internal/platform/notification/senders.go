package notification

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogEmailSender writes messages to the log instead of a real provider. Used
// until an SMTP or transactional email integration is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Msg("notification delivered")
	return nil
}

// LogSMSSender is the SMS counterpart of LogEmailSender.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, _ string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Msg("notification delivered")
	return nil
}

// EmailCall records one SendEmail invocation.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// CaptureEmailSender is a test double that records calls and can be forced to
// fail.
type CaptureEmailSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Fail  error
}

func (s *CaptureEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, EmailCall{To: to, Subject: subject, Body: body})
	return s.Fail
}

// Calls returns a copy of the recorded calls.
func (s *CaptureEmailSender) Calls() []EmailCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EmailCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// SMSCall records one SendSMS invocation.
type SMSCall struct {
	To   string
	Body string
}

// CaptureSMSSender is the SMS counterpart of CaptureEmailSender.
type CaptureSMSSender struct {
	mu    sync.Mutex
	calls []SMSCall
	Fail  error
}

func (s *CaptureSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SMSCall{To: to, Body: body})
	return s.Fail
}

// Calls returns a copy of the recorded calls.
func (s *CaptureSMSSender) Calls() []SMSCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SMSCall, len(s.calls))
	copy(out, s.calls)
	return out
}
