// Package events models the inbound event envelope produced by the
// upstream event platform. Only identify events flow through the sync
// pipeline; every other type is rejected up front.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/audienceops/traitsync/pkg/syncerrors"
)

// Type is the event type declared by the upstream dispatcher.
type Type string

const (
	TypeIdentify Type = "identify"
	TypeTrack    Type = "track"
	TypePage     Type = "page"
	TypeScreen   Type = "screen"
	TypeGroup    Type = "group"
	TypeAlias    Type = "alias"
	TypeDelete   Type = "delete"
)

// ComputationClassAudience is the computation class that marks an event as
// carrying active-audience membership.
const ComputationClassAudience = "audience"

// Personas carries the computed-trait reference attached by the Profile
// Store when an event was emitted by an audience computation.
type Personas struct {
	ComputationClass string `json:"computation_class,omitempty"`
	ComputationKey   string `json:"computation_key,omitempty"`
	ComputationID    string `json:"computation_id,omitempty"`
}

// Context is the event context block.
type Context struct {
	Personas *Personas `json:"personas,omitempty"`
}

// Event is one identify-type occurrence. UserID may be absent, in which
// case the traits bag must carry an email address for profile lookup.
type Event struct {
	MessageID string         `json:"messageId,omitempty"`
	Type      Type           `json:"type"`
	UserID    string         `json:"userId,omitempty"`
	Traits    map[string]any `json:"traits,omitempty"`
	Context   Context        `json:"context"`
}

// Parse decodes a raw event payload.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return &ev, nil
}

// Email returns the email trait, or "" when absent or not a string.
func (e *Event) Email() string {
	if e.Traits == nil {
		return ""
	}
	email, _ := e.Traits["email"].(string)
	return email
}

// AudienceKey returns the name of the active audience this event was
// emitted for, or "" when the event does not reference one.
func (e *Event) AudienceKey() string {
	p := e.Context.Personas
	if p == nil {
		return ""
	}
	if p.ComputationClass != ComputationClassAudience || p.ComputationKey == "" {
		return ""
	}
	return p.ComputationKey
}

// EnsureSupported rejects every event type except identify.
func EnsureSupported(t Type) error {
	if t != TypeIdentify {
		return syncerrors.NewEventNotSupported(string(t))
	}
	return nil
}
