package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action types recorded in the audit trail
const (
	AuditActionLogin    = "LOGIN"
	AuditActionRegister = "REGISTER"
)

// Outcomes
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// Failure reasons carried in the details payload
const (
	AuditReasonMissingCredentials = "missing_credentials"
	AuditReasonMissingFields      = "missing_fields"
	AuditReasonUserNotFound       = "user_not_found"
	AuditReasonInvalidPassword    = "invalid_password"
	AuditReasonUsernameExists     = "username_exists"
	AuditReasonEmailExists        = "email_exists"
	AuditReasonServerError        = "server_error"
)

// AuditLog is an immutable record of a security-relevant action.
// Rows are insert-only; nothing in this codebase updates or deletes them.
type AuditLog struct {
	ID           uuid.UUID    `db:"id"`
	UserID       *int64       `db:"user_id"` // nil for pre-authentication failures
	ActionType   string       `db:"action_type"`
	ActionStatus string       `db:"action_status"`
	IPAddress    *string      `db:"ip_address"`
	UserAgent    *string      `db:"user_agent"`
	Details      AuditDetails `db:"details"`
	CreatedAt    time.Time    `db:"created_at"`
}

// AuditDetails holds the structured reason payload for an audit record
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// MarshalJSON implements json.Marshaler
func (d AuditDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(d))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *AuditDetails) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}
