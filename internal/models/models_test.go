package models

import (
	"errors"
	"testing"
)

func validSubmission() Submission {
	return Submission{
		CreatedAt:  "2024-05-17 12:30:45",
		SessionID:  "12345",
		LastName:   "Иванов",
		FirstName:  "Иван",
		Patronymic: "Иванович",
		BirthDate:  "01.01.1995",
		Phone:      "+79991234567",
		Message:    "тест",
		Consent:    MarkYes,
		Processed:  MarkNo,
	}
}

func TestSubmissionValidate(t *testing.T) {
	sub := validSubmission()
	if err := sub.Validate(); err != nil {
		t.Errorf("valid submission rejected: %v", err)
	}

	sub = validSubmission()
	sub.SessionID = ""
	if err := sub.Validate(); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("empty session id: got %v, want ErrEmptySessionID", err)
	}

	sub = validSubmission()
	sub.Consent = "yes"
	if err := sub.Validate(); !errors.Is(err, ErrInvalidMark) {
		t.Errorf("bad consent marker: got %v, want ErrInvalidMark", err)
	}

	sub = validSubmission()
	sub.Processed = "maybe"
	if err := sub.Validate(); !errors.Is(err, ErrInvalidMark) {
		t.Errorf("bad processed marker: got %v, want ErrInvalidMark", err)
	}

	sub = validSubmission()
	sub.CreatedAt = "17.05.2024"
	if err := sub.Validate(); err == nil {
		t.Error("malformed timestamp accepted")
	}
}

func TestSubmissionIsProcessed(t *testing.T) {
	sub := validSubmission()
	if sub.IsProcessed() {
		t.Error("НЕТ must read as unprocessed")
	}
	sub.Processed = MarkYes
	if !sub.IsProcessed() {
		t.Error("ДА must read as processed")
	}
}

func TestSubmissionFullName(t *testing.T) {
	sub := validSubmission()
	if got := sub.FullName(); got != "Иванов Иван Иванович" {
		t.Errorf("FullName = %q", got)
	}

	sub.Patronymic = ""
	if got := sub.FullName(); got != "Иванов Иван" {
		t.Errorf("FullName without patronymic = %q", got)
	}

	empty := Submission{}
	if got := empty.FullName(); got != "" {
		t.Errorf("FullName of empty submission = %q", got)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success([]int{1, 2})
	if ok.Status != string(APIStatusOK) || ok.Result == nil || ok.Message != "" {
		t.Errorf("Success envelope = %+v", ok)
	}
	bad := Error("boom")
	if bad.Status != string(APIStatusError) || bad.Message != "boom" || bad.Result != nil {
		t.Errorf("Error envelope = %+v", bad)
	}
}
