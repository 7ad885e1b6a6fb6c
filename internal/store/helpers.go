package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// scanSubmission scans a Submission from sql.Rows. The column order must
// match the SELECT lists in sqlite.go and postgres.go.
func scanSubmission(rows *sql.Rows) (models.Submission, error) {
	var sub models.Submission
	var displayName sql.NullString
	err := rows.Scan(
		&sub.ID, &sub.CreatedAt, &sub.SessionID, &displayName,
		&sub.LastName, &sub.FirstName, &sub.Patronymic, &sub.BirthDate,
		&sub.Phone, &sub.Message, &sub.Consent, &sub.Processed,
	)
	if err != nil {
		return sub, fmt.Errorf("scan submission failed: %w", err)
	}
	sub.DisplayName = displayName.String
	return sub, nil
}
