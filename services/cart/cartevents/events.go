package cartevents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MarcGrol/shopcart/lib/myevents"
)

const (
	TopicName       = "cart"
	cartChangedName = TopicName + ".changed"
)

type CartEventService interface {
	OnCartChanged(c context.Context, topic string, event CartChanged) error
}

// DispatchEvent decodes a json envelope as published on TopicName and hands
// the event to service.
func DispatchEvent(c context.Context, data []byte, service CartEventService) error {
	envelope := myevents.EventEnvelope{}
	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return fmt.Errorf("error parsing envelope: %s", err)
	}

	switch envelope.EventTypeName {
	case cartChangedName:
		event := CartChanged{}
		err := json.Unmarshal([]byte(envelope.EventPayload), &event)
		if err != nil {
			return fmt.Errorf("error parsing %s: %s", envelope.EventTypeName, err)
		}
		return service.OnCartChanged(c, envelope.Topic, event)
	default:
		return fmt.Errorf("unsupported event type %s", envelope.EventTypeName)
	}
}

type Line struct {
	ProductID string
	Title     string
	Price     float64
	Quantity  int
}

type CartChanged struct {
	SlotKey   string
	Lines     []Line
	ItemCount int
	Total     string
}

func (e CartChanged) GetEventTypeName() string {
	return cartChangedName
}

func (e CartChanged) GetAggregateName() string {
	return e.SlotKey
}
