// Package flow implements the conversation controller: the finite-state
// machine that drives one session through the intake prompts, validation,
// confirmation, and commit.
package flow

import (
	"context"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/validation"
)

// Messenger is the outbound slice of the messaging gateway needed by the
// controller. Defined here to avoid a circular import with the messaging
// package (which routes inbound messages into the controller).
type Messenger interface {
	// SendMessage sends plain text to an identity.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMenu sends text together with a small fixed set of choice
	// buttons; tapping a choice delivers its exact text back.
	SendMenu(ctx context.Context, to string, body string, choices []string) error
}

// step describes one collecting state of the linear pipeline: the prompt
// emitted on entry, the validator applied to input, the rejection message
// re-emitted on failure, and the successor state.
type step struct {
	state    models.StateType
	field    models.FieldKey
	prompt   string
	menu     []string
	validate func(raw string) (string, error)
	reject   string
	next     models.StateType
}

// buildSteps constructs the ordered transition table. Resolution happens
// once per inbound message; there is no handler registration order to
// reason about.
func buildSteps(phoneRule validation.PhoneRule) []step {
	phoneReject := RejectPhoneStrict
	if phoneRule.Lenient {
		phoneReject = RejectPhoneLenient
	}
	return []step{
		{
			state:    models.StateAwaitLastName,
			field:    models.FieldLastName,
			prompt:   PromptLastName,
			menu:     CancelMenu,
			validate: validation.NameToken,
			reject:   RejectName,
			next:     models.StateAwaitFirstName,
		},
		{
			state:    models.StateAwaitFirstName,
			field:    models.FieldFirstName,
			prompt:   PromptFirstName,
			menu:     CancelMenu,
			validate: validation.NameToken,
			reject:   RejectName,
			next:     models.StateAwaitPatronymic,
		},
		{
			state:    models.StateAwaitPatronymic,
			field:    models.FieldPatronymic,
			prompt:   PromptPatronymic,
			menu:     CancelMenu,
			validate: validation.NameToken,
			reject:   RejectName,
			next:     models.StateAwaitBirthDate,
		},
		{
			state:    models.StateAwaitBirthDate,
			field:    models.FieldBirthDate,
			prompt:   PromptBirthDate,
			menu:     CancelMenu,
			validate: validation.BirthDate,
			reject:   RejectDate,
			next:     models.StateAwaitPhone,
		},
		{
			state:  models.StateAwaitPhone,
			field:  models.FieldPhone,
			prompt: PromptPhone,
			menu:   CancelMenu,
			validate: func(raw string) (string, error) {
				return validation.Phone(raw, phoneRule)
			},
			reject: phoneReject,
			next:   models.StateAwaitFreeText,
		},
		{
			state:    models.StateAwaitFreeText,
			field:    models.FieldMessage,
			prompt:   PromptFreeText,
			menu:     SkipMenu,
			validate: validation.FreeText,
			reject:   "", // free text always validates
			next:     models.StateAwaitConfirm,
		},
	}
}
