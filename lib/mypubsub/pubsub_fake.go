package mypubsub

import (
	"context"
	"fmt"
	"os"
	"sync"
)

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = func(c context.Context) (PubSub, func(), error) {
			return NewFake(), func() {}, nil
		}
	}
}

type Publication struct {
	Topic string
	Data  string
}

// Fake keeps publications in memory instead of sending them anywhere.
type Fake struct {
	sync.Mutex
	topics       map[string]bool
	publications []Publication
}

func NewFake() *Fake {
	return &Fake{
		topics: map[string]bool{},
	}
}

func (f *Fake) CreateTopic(c context.Context, topic string) error {
	f.Lock()
	defer f.Unlock()

	f.topics[topic] = true
	return nil
}

func (f *Fake) Publish(c context.Context, topic string, data string) error {
	f.Lock()
	defer f.Unlock()

	if !f.topics[topic] {
		return fmt.Errorf("topic %s does not exist", topic)
	}
	f.publications = append(f.publications, Publication{Topic: topic, Data: data})
	return nil
}

func (f *Fake) Publications() []Publication {
	f.Lock()
	defer f.Unlock()

	return append([]Publication{}, f.publications...)
}
