package family

import (
	"encoding/json"
	"fmt"

	"github.com/marianoklecha/turnos-core/internal/machine"
)

// DecodeEvent builds a machine event from its wire type and JSON payload.
// SetAuth is deliberately not decodable: identity is attached server-side
// from the verified token, never taken from the request body.
func DecodeEvent(eventType string, payload json.RawMessage) (machine.Event, error) {
	unmarshal := func(v any) error {
		if len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, v)
	}

	switch eventType {
	case Save{}.EventType():
		return Save{}, nil
	case CancelEdit{}.EventType():
		return CancelEdit{}, nil
	case Logout{}.EventType():
		return Logout{}, nil
	case ClearError{}.EventType():
		return ClearError{}, nil
	case UpdateField{}.EventType():
		var ev UpdateField
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetEditMember{}.EventType():
		var ev SetEditMember
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case CancelFieldEdit{}.EventType():
		var ev CancelFieldEdit
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("family: unknown event type %q", eventType)
	}
}
