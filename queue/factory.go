package queue

// Factory is the entry point spec.md §6 names "QueueFactory": a single
// place to construct any of the three endpoint shapes from Options.
type Factory struct{}

// NewFactory returns a ready-to-use Factory. It carries no state; its only
// purpose is giving callers (such as cmd/shmqctl) one symmetrical
// construction surface instead of three free functions.
func NewFactory() *Factory {
	return &Factory{}
}

// CreatePublisher opens (or creates) opts.Name as a Publisher.
func (f *Factory) CreatePublisher(opts Options) (*Publisher, error) {
	return NewPublisher(opts)
}

// CreateSubscriber opens (or creates) opts.Name as a Subscriber.
func (f *Factory) CreateSubscriber(opts Options) (*Subscriber, error) {
	return NewSubscriber(opts)
}

// CreateChannel opens both halves of a duplex built from opts.Name, per
// Channel's "P"/"S" naming convention.
func (f *Factory) CreateChannel(opts Options, asClient bool) (*Channel, error) {
	return NewChannel(opts, asClient)
}
