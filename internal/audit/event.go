package audit

import "time"

// Действия, которые попадают в журнал
const (
	ActionLogin      = "login"
	ActionSignup     = "signup"
	ActionRefresh    = "refresh"
	ActionLogout     = "logout"
	ActionRoleChange = "role_change"
)

// Исходы
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

type AuthEvent struct {
	ID        string    `json:"id"`         // UUID события
	RequestID string    `json:"request_id"` // chi RequestID
	UserID    string    `json:"user_id"`    // Кто (может быть пустым при неудачном логине)
	Email     string    `json:"email"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	RemoteIP  string    `json:"remote_ip"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
