package domain

import "time"

// AppState is a resource snapshot stamped with the version it was taken at.
type AppState struct {
	Resources   []Resource `json:"resources"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Version     int64      `json:"version"`
}

type ReconcileAction string

const (
	ReconcileServerWins ReconcileAction = "server_wins"
	ReconcileConflict   ReconcileAction = "conflict_detected"
	ReconcileNoChanges  ReconcileAction = "no_changes"
)

// ReconcileResult is the answer to a client presenting its cached version.
// Data is always the server's resource list.
type ReconcileResult struct {
	Action  ReconcileAction `json:"action"`
	Data    []Resource      `json:"data"`
	Version int64           `json:"version"`
}

type AuditAction string

const (
	AuditResourceUpdate       AuditAction = "resource_update"
	AuditResourceVerification AuditAction = "resource_verification"
	AuditResourceCreate       AuditAction = "resource_create"
	AuditUserCreate           AuditAction = "user_create"
)

type AuditEntry struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Action       AuditAction `json:"action"`
	UserCode     string      `json:"userCode"`
	UserType     UserType    `json:"userType"`
	ResourceID   int64       `json:"resourceId,omitempty"`
	ResourceName string      `json:"resourceName,omitempty"`
	OldStatus    Status      `json:"oldStatus,omitempty"`
	NewStatus    Status      `json:"newStatus,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
}

// ResourceChange is emitted to observers and message brokers after every
// accepted mutation.
type ResourceChange struct {
	EventID   string      `json:"eventId"`
	Action    AuditAction `json:"action"`
	Resource  Resource    `json:"resource"`
	Version   int64       `json:"version"`
	ChangedBy string      `json:"changedBy"`
	ChangedAt time.Time   `json:"changedAt"`
}

// MutationResult is returned by every accepted write: the affected resource,
// the full resource list after the write and the version it produced.
type MutationResult struct {
	Resource  Resource   `json:"resource"`
	Resources []Resource `json:"resources"`
	Version   int64      `json:"version"`
}
