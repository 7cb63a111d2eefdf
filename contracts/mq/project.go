package mq

import "time"

const RoutingKeyProjectChanged = "project.changed"

// Project change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionToggled = "stage_toggled"
)

// ProjectChangedPayload tells every API instance to drop its project cache.
type ProjectChangedPayload struct {
	ProjectID string    `json:"project_id"`
	Action    string    `json:"action"`
	Stage     string    `json:"stage,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
