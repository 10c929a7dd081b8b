package booking

import (
	"encoding/json"
	"fmt"

	"github.com/marianoklecha/turnos-core/internal/machine"
)

// DecodeEvent builds a machine event from its wire type and JSON payload.
// Only view-facing events are decodable; effect completions and the data
// layer's signals are dispatched in-process by their owners.
func DecodeEvent(eventType string, payload json.RawMessage) (machine.Event, error) {
	unmarshal := func(v any) error {
		if len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, v)
	}

	switch eventType {
	case Next{}.EventType():
		return Next{}, nil
	case Back{}.EventType():
		return Back{}, nil
	case ResetTakeTurn{}.EventType():
		return ResetTakeTurn{}, nil
	case ResetShowTurns{}.EventType():
		return ResetShowTurns{}, nil
	case ClearCancelSuccess{}.EventType():
		return ClearCancelSuccess{}, nil
	case LoadModifySlots{}.EventType():
		return LoadModifySlots{}, nil
	case SubmitModifyRequest{}.EventType():
		return SubmitModifyRequest{}, nil
	case CheckDoctorAvailability{}.EventType():
		return CheckDoctorAvailability{}, nil
	case CreateTurn{}.EventType():
		return CreateTurn{}, nil
	case SetSpecialty{}.EventType():
		var ev SetSpecialty
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetDoctor{}.EventType():
		var ev SetDoctor
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetDate{}.EventType():
		var ev SetDate
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetTime{}.EventType():
		var ev SetTime
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetMotive{}.EventType():
		var ev SetMotive
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetNeedsCertificate{}.EventType():
		var ev SetNeedsCertificate
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetShowTurnsDate{}.EventType():
		var ev SetShowTurnsDate
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetShowTurnsStatus{}.EventType():
		var ev SetShowTurnsStatus
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case Navigate{}.EventType():
		var ev Navigate
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetModifyDate{}.EventType():
		var ev SetModifyDate
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case SetModifyTime{}.EventType():
		var ev SetModifyTime
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case CancelTurn{}.EventType():
		var ev CancelTurn
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case CompleteTurn{}.EventType():
		var ev CompleteTurn
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	case NoShowTurn{}.EventType():
		var ev NoShowTurn
		if err := unmarshal(&ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("booking: unknown event type %q", eventType)
	}
}
