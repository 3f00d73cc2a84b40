package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	EventDisasterUpdated    = "disaster_updated"
	EventResourcesUpdated   = "resources_updated"
	EventSocialMediaUpdated = "social_media_updated"
	EventSystemHeartbeat    = "system_heartbeat"
)

// KnownEvent reports whether t is one of the outbound event types.
func KnownEvent(t string) bool {
	switch t {
	case EventDisasterUpdated, EventResourcesUpdated, EventSocialMediaUpdated, EventSystemHeartbeat:
		return true
	}
	return false
}

// ErrInvalidPayload rejects an ingress event whose payload does not have the
// shape its type requires.
var ErrInvalidPayload = errors.New("invalid event payload")

type DisasterUpdatedPayload struct {
	Action   string `json:"action"`
	Disaster any    `json:"disaster"`
}

type ResourcesUpdatedPayload struct {
	DisasterID string `json:"disaster_id"`
	Action     string `json:"action"`
	Resource   any    `json:"resource"`
}

type SocialMediaUpdatedPayload struct {
	DisasterID string `json:"disaster_id"`
	Items      any    `json:"items"`
}

type HeartbeatPayload struct {
	Timestamp         time.Time `json:"timestamp"`
	ActiveConnections int       `json:"active_connections"`
}

func validAction(a string) bool {
	switch a {
	case "create", "update", "delete":
		return true
	}
	return false
}

// DecodePayload parses an externally supplied payload for eventType into its
// typed shape. defaultParent fills a missing disaster_id.
func DecodePayload(eventType string, raw json.RawMessage, defaultParent string) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s requires a payload", ErrInvalidPayload, eventType)
	}
	switch eventType {
	case EventDisasterUpdated:
		var p DisasterUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if !validAction(p.Action) || p.Disaster == nil {
			return nil, fmt.Errorf("%w: disaster_updated needs action and disaster", ErrInvalidPayload)
		}
		return p, nil
	case EventResourcesUpdated:
		var p ResourcesUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.DisasterID == "" {
			p.DisasterID = defaultParent
		}
		if p.DisasterID == "" || !validAction(p.Action) || p.Resource == nil {
			return nil, fmt.Errorf("%w: resources_updated needs disaster_id, action and resource", ErrInvalidPayload)
		}
		return p, nil
	case EventSocialMediaUpdated:
		var p SocialMediaUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.DisasterID == "" {
			p.DisasterID = defaultParent
		}
		if _, ok := p.Items.([]any); p.DisasterID == "" || !ok {
			return nil, fmt.Errorf("%w: social_media_updated needs disaster_id and an items list", ErrInvalidPayload)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unsupported event type %q", ErrInvalidPayload, eventType)
}
