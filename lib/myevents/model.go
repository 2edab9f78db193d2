package myevents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MarcGrol/shopcart/lib/mytime"
	"github.com/MarcGrol/shopcart/lib/myuuid"
)

type EventEnvelope struct {
	UID           string
	CreatedAt     time.Time
	Topic         string
	AggregateUID  string
	EventTypeName string
	EventPayload  string
}

func (e EventEnvelope) String() string {
	return e.Topic + "." + e.EventTypeName + "." + e.AggregateUID
}

type Event interface {
	GetEventTypeName() string
	GetAggregateName() string
}

type Enveloper struct {
	nower  mytime.Nower
	uuider myuuid.UUIDer
}

func NewEnveloper(nower mytime.Nower, uuider myuuid.UUIDer) Enveloper {
	return Enveloper{
		nower:  nower,
		uuider: uuider,
	}
}

// Wrap serializes the event and returns the envelope as json.
func (e Enveloper) Wrap(topic string, event Event) (EventEnvelope, string, error) {
	jsonPayload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, "", fmt.Errorf("error marshalling event-payload: %s", err)
	}

	envelope := EventEnvelope{
		UID:           e.uuider.Create(),
		CreatedAt:     e.nower.Now(),
		Topic:         topic,
		AggregateUID:  event.GetAggregateName(),
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(jsonPayload),
	}

	jsonEnvelope, err := json.Marshal(envelope)
	if err != nil {
		return EventEnvelope{}, "", fmt.Errorf("error marshalling envelope: %s", err)
	}

	return envelope, string(jsonEnvelope), nil
}
