package queue

import (
	"github.com/hashicorp/go-multierror"
)

// Channel pairs a Publisher and a Subscriber on complementary halves of one
// base name to form a duplex (spec.md §4.7): the server side publishes on
// "P"+name and subscribes on "S"+name; asClient swaps the two so the other
// end's publisher feeds this end's subscriber and vice versa.
type Channel struct {
	Publisher  *Publisher
	Subscriber *Subscriber
}

// NewChannel opens both halves of a duplex queue pair.
func NewChannel(base Options, asClient bool) (*Channel, error) {
	pubName, subName := "P"+base.Name, "S"+base.Name
	if asClient {
		pubName, subName = subName, pubName
	}

	pub, err := NewPublisher(base.withName(pubName))
	if err != nil {
		return nil, err
	}
	sub, err := NewSubscriber(base.withName(subName))
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	return &Channel{Publisher: pub, Subscriber: sub}, nil
}

// Close disposes both halves, aggregating any failures.
func (c *Channel) Close() error {
	var result *multierror.Error
	if err := c.Publisher.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Subscriber.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
