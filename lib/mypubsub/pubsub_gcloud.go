package mypubsub

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"cloud.google.com/go/pubsub"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
)

type gcloudPubSub struct {
	sync.Mutex
	client *pubsub.Client
	topics map[string]*pubsub.Topic
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		New = newGcloudPubSub
	}
}

func newGcloudPubSub(c context.Context) (PubSub, func(), error) {
	client, err := pubsub.NewClient(c, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("error creating pubsub-client: %s", err)
	}
	ps := &gcloudPubSub{
		client: client,
		topics: map[string]*pubsub.Topic{},
	}
	return ps, func() {
		ps.stop()
		client.Close()
	}, nil
}

func (ps *gcloudPubSub) CreateTopic(c context.Context, topicName string) error {
	topic, err := ps.client.CreateTopic(c, topicName)
	if err != nil {
		rsp, ok := grpcStatus.FromError(err)
		if !ok || rsp.Code() != grpcCodes.AlreadyExists {
			return fmt.Errorf("error creating topic %s: %s", topicName, err)
		}
		topic = ps.client.Topic(topicName)
	}

	ps.Lock()
	ps.topics[topicName] = topic
	ps.Unlock()

	log.Printf("Topic %s available", topicName)

	return nil
}

func (ps *gcloudPubSub) topic(topicName string) *pubsub.Topic {
	ps.Lock()
	defer ps.Unlock()

	topic, found := ps.topics[topicName]
	if !found {
		topic = ps.client.Topic(topicName)
		ps.topics[topicName] = topic
	}
	return topic
}

func (ps *gcloudPubSub) Publish(c context.Context, topicName string, data string) error {
	_, err := ps.topic(topicName).Publish(c, &pubsub.Message{Data: []byte(data)}).Get(c)
	if err != nil {
		return fmt.Errorf("error publishing event on topic %s: %s", topicName, err)
	}

	return nil
}

func (ps *gcloudPubSub) stop() {
	ps.Lock()
	defer ps.Unlock()

	for _, topic := range ps.topics {
		topic.Stop()
	}
}
