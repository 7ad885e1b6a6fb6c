// Package models defines the core data structures for IntakeRelay.
//
// It includes the submission ledger row, conversation state and trigger
// constants, and inbound/outbound message events shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// StateType identifies a conversation controller state for one session.
type StateType string

// Conversation states. The pipeline is linear; StateIdle is the absence of
// an application in progress.
const (
	// StateIdle means no application dialogue is in progress.
	StateIdle StateType = ""
	// StateAwaitConsent waits for the personal-data consent button.
	StateAwaitConsent StateType = "AWAIT_CONSENT"
	// StateAwaitLastName waits for the applicant's last name.
	StateAwaitLastName StateType = "AWAIT_LAST_NAME"
	// StateAwaitFirstName waits for the applicant's first name.
	StateAwaitFirstName StateType = "AWAIT_FIRST_NAME"
	// StateAwaitPatronymic waits for the applicant's patronymic.
	StateAwaitPatronymic StateType = "AWAIT_PATRONYMIC"
	// StateAwaitBirthDate waits for the applicant's birth date.
	StateAwaitBirthDate StateType = "AWAIT_BIRTH_DATE"
	// StateAwaitPhone waits for the applicant's contact phone.
	StateAwaitPhone StateType = "AWAIT_PHONE"
	// StateAwaitFreeText waits for the free-text request description.
	StateAwaitFreeText StateType = "AWAIT_FREE_TEXT"
	// StateAwaitConfirm waits for the final yes/no confirmation.
	StateAwaitConfirm StateType = "AWAIT_CONFIRM"
)

// FieldKey names a collected form field inside a session.
type FieldKey string

// Form field keys in declared ledger column order.
const (
	FieldLastName   FieldKey = "last_name"
	FieldFirstName  FieldKey = "first_name"
	FieldPatronymic FieldKey = "patronymic"
	FieldBirthDate  FieldKey = "birth_date"
	FieldPhone      FieldKey = "phone"
	FieldMessage    FieldKey = "message"
	FieldConsent    FieldKey = "consent"
)

// Button and command trigger strings. Matching is exact and case-sensitive;
// any other text in a non-validating wait state is unrecognized input, not
// an error.
const (
	// TriggerStart is the public greeting command.
	TriggerStart = "/start"
	// TriggerStatus is the public liveness no-op command.
	TriggerStatus = "/status"
	// TriggerBegin starts a new application dialogue.
	TriggerBegin = "Оставить заявку"
	// TriggerCancel aborts the dialogue from any non-idle state.
	TriggerCancel = "Отмена"
	// TriggerConsent is the single accepted consent button.
	TriggerConsent = "✅ Даю согласие"
	// TriggerConfirmYes commits the collected application.
	TriggerConfirmYes = "✅ Да, всё верно"
	// TriggerConfirmNo discards the collected fields and restarts.
	TriggerConfirmNo = "❌ Нет, начать заново"
	// TriggerSkip maps the free-text field to an empty value.
	TriggerSkip = "Пропустить"
)

// Administrator command names.
const (
	CmdCheck = "/check"
	CmdReply = "/reply"
	CmdDone  = "/done"
)

// Two-valued ledger markers used for the consent and processed columns.
const (
	MarkYes = "ДА"
	MarkNo  = "НЕТ"
)

// TimestampLayout is the ledger timestamp column format.
const TimestampLayout = "2006-01-02 15:04:05"

// Error variables for better error handling and testability.
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptySessionID   = errors.New("session id cannot be empty")
	ErrInvalidMark      = errors.New("marker must be ДА or НЕТ")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameNotAlphabetic = errors.New("name must contain only Cyrillic letters")
	ErrBadDateShape     = errors.New("date must match DD.MM.YYYY")
	ErrDateOutOfRange   = errors.New("date components out of range")
	ErrBadPhone         = errors.New("phone does not match the required pattern")
)

// Submission represents one ledger row: a completed application.
// Column order is fixed; the processed column index must match the schema
// exactly because the admin mark-processed update addresses it by position.
type Submission struct {
	ID          int64  `json:"id"`
	CreatedAt   string `json:"created_at"` // TimestampLayout
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name,omitempty"`
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	Patronymic  string `json:"patronymic"`
	BirthDate   string `json:"birth_date"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
	Consent     string `json:"consent"`   // MarkYes / MarkNo
	Processed   string `json:"processed"` // MarkYes / MarkNo, transitions only НЕТ→ДА
}

// Validate performs basic structural validation on a Submission.
func (s *Submission) Validate() error {
	if s.SessionID == "" {
		return ErrEmptySessionID
	}
	if s.Consent != MarkYes && s.Consent != MarkNo {
		return fmt.Errorf("consent: %w", ErrInvalidMark)
	}
	if s.Processed != MarkYes && s.Processed != MarkNo {
		return fmt.Errorf("processed: %w", ErrInvalidMark)
	}
	if s.CreatedAt != "" {
		if _, err := time.Parse(TimestampLayout, s.CreatedAt); err != nil {
			return fmt.Errorf("created_at: %w", err)
		}
	}
	return nil
}

// IsProcessed reports whether an administrator has handled the submission.
func (s *Submission) IsProcessed() bool {
	return s.Processed == MarkYes
}

// FullName joins the collected name parts for display.
func (s *Submission) FullName() string {
	name := s.LastName
	for _, part := range []string{s.FirstName, s.Patronymic} {
		if part != "" {
			if name != "" {
				name += " "
			}
			name += part
		}
	}
	return name
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a conversing party.
// From carries the opaque numeric identity; DisplayName is optional and
// supplied by the gateway when known.
type Response struct {
	From        string `json:"from"`
	DisplayName string `json:"display_name,omitempty"`
	Body        string `json:"body"`
	Time        int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for HTTP endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
