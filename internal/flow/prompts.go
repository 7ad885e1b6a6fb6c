package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// User-facing dialogue texts. Trigger strings live in models; everything
// here is presentation only.
const (
	PromptGreeting = "👋 Добро пожаловать! Нажмите кнопку ниже, чтобы оставить заявку."
	PromptConsent  = "Для оформления заявки необходимо согласие на обработку персональных данных. Нажмите кнопку ниже, чтобы продолжить."

	PromptLastName   = "Укажите вашу фамилию:"
	PromptFirstName  = "Укажите ваше имя:"
	PromptPatronymic = "Укажите ваше отчество:"
	PromptBirthDate  = "Укажите дату рождения (ДД.ММ.ГГГГ):"
	PromptPhone      = "Укажите ваш телефон для связи (например, +79991234567):"
	PromptFreeText   = "Опишите ваш запрос:"

	RejectName         = "⚠️ Пожалуйста, введите одно слово кириллицей, без пробелов и цифр."
	RejectDate         = "📅 Пожалуйста, введите дату в формате ДД.ММ.ГГГГ (например, 01.01.1995)."
	RejectPhoneStrict  = "📞 Пожалуйста, введите телефон в формате +7XXXXXXXXXX."
	RejectPhoneLenient = "📞 Пожалуйста, введите корректный телефон (минимум 10 цифр)."

	MsgCancelled     = "Заявка отменена."
	MsgAccepted      = "✅ Спасибо! Ваша заявка принята. Мы свяжемся с вами в ближайшее время."
	MsgRestart       = "Начнём заново."
	MsgPickOption    = "Пожалуйста, выберите вариант ниже."
	MsgStatus        = "✅ Бот работает. Все заявки сохраняются в журнале."
	MsgConfirmFooter = "Всё верно?"
)

// Choice sets presented alongside prompts.
var (
	MainMenu    = []string{models.TriggerBegin}
	CancelMenu  = []string{models.TriggerCancel}
	ConsentMenu = []string{models.TriggerConsent, models.TriggerCancel}
	SkipMenu    = []string{models.TriggerSkip, models.TriggerCancel}
	ConfirmMenu = []string{models.TriggerConfirmYes, models.TriggerConfirmNo}
)

// summaryLabels maps field keys to their display labels, in summary order.
var summaryOrder = []struct {
	key   models.FieldKey
	label string
}{
	{models.FieldLastName, "Фамилия"},
	{models.FieldFirstName, "Имя"},
	{models.FieldPatronymic, "Отчество"},
	{models.FieldBirthDate, "Дата рождения"},
	{models.FieldPhone, "Телефон"},
	{models.FieldMessage, "Сообщение"},
}

// confirmSummary renders the collected fields for the final confirmation.
func confirmSummary(fields map[models.FieldKey]string) string {
	var b strings.Builder
	b.WriteString("Пожалуйста, подтвердите данные:\n\n")
	for _, item := range summaryOrder {
		fmt.Fprintf(&b, "%s: %s\n", item.label, fields[item.key])
	}
	b.WriteString("\n")
	b.WriteString(MsgConfirmFooter)
	return b.String()
}

// adminNotification renders the commit fan-out message for the
// administrator: the full field summary plus ready-to-copy reply/done
// command text.
func adminNotification(sessionID, displayName string, fields map[models.FieldKey]string) string {
	var b strings.Builder
	b.WriteString("📬 Новая заявка")
	if displayName != "" {
		fmt.Fprintf(&b, " от %s", displayName)
	}
	fmt.Fprintf(&b, " (id %s):\n\n", sessionID)
	for _, item := range summaryOrder {
		fmt.Fprintf(&b, "%s: %s\n", item.label, fields[item.key])
	}
	fmt.Fprintf(&b, "\nОтветить: %s %s <текст>\n", models.CmdReply, sessionID)
	fmt.Fprintf(&b, "Закрыть: %s %s", models.CmdDone, sessionID)
	return b.String()
}
