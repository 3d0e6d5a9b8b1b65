package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  string     `json:"user_agent,omitempty" db:"user_agent"`
	Metadata   JSONMap    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate   = "create"
	AuditActionRead     = "read"
	AuditActionUpdate   = "update"
	AuditActionDelete   = "delete"
	AuditActionLogin    = "login"
	AuditActionLogout   = "logout"
	AuditActionRegister = "register"
	AuditActionExport   = "export"

	// Entity types
	AuditEntityUser         = "user"
	AuditEntityDoctor       = "doctor"
	AuditEntityPatient      = "patient"
	AuditEntityAppointment  = "appointment"
	AuditEntityConsultation = "consultation"
	AuditEntityPrescription = "prescription"
	AuditEntityVitals       = "vitals"
)

type AuditFilter struct {
	Pagination
	EntityType string     `form:"entity_type"`
	UserID     *uuid.UUID `form:"-"`
	EntityID   *uuid.UUID `form:"-"`
}
