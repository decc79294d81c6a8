package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactoryCreatesEachEndpointShape(t *testing.T) {
	f := NewFactory()

	pub, err := f.CreatePublisher(testOptions(t, 256))
	require.NoError(t, err)
	defer pub.Close()

	sub, err := f.CreateSubscriber(testOptions(t, 256))
	require.NoError(t, err)
	defer sub.Close()

	ch, err := f.CreateChannel(testChannelOptions(t, 256), false)
	require.NoError(t, err)
	defer ch.Close()
}
