package mypubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	c := context.TODO()

	t.Run("Publish on unknown topic", func(t *testing.T) {
		sut := NewFake()

		err := sut.Publish(c, "cart", "{}")

		assert.Error(t, err)
		assert.Empty(t, sut.Publications())
	})

	t.Run("Publish on created topic", func(t *testing.T) {
		sut := NewFake()
		assert.NoError(t, sut.CreateTopic(c, "cart"))

		assert.NoError(t, sut.Publish(c, "cart", `{"a":1}`))
		assert.NoError(t, sut.Publish(c, "cart", `{"a":2}`))

		assert.Equal(t, []Publication{
			{Topic: "cart", Data: `{"a":1}`},
			{Topic: "cart", Data: `{"a":2}`},
		}, sut.Publications())
	})
}
