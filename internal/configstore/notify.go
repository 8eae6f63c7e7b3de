package configstore

import (
	"context"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
)

// networksUpdatedChannel is the pub/sub channel NetworkChangeNotifier
// publishes and subscribes on (SPEC_FULL §4.10).
const networksUpdatedChannel = "barreleye:networks_updated"

// NetworkChangeNotifier fans out NetworksUpdated bumps over Redis pub/sub.
// Nothing in the indexer constructs it: the store's Set does not publish
// and the scheduler does not subscribe; network-set changes are picked up
// by internal/app's network refresh before each scheduler iteration.
type NetworkChangeNotifier struct {
	client *redis.Client
}

// NewNetworkChangeNotifier dials addr (host:port).
func NewNetworkChangeNotifier(addr string, db int) (*NetworkChangeNotifier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "configstore: redis ping")
	}
	return &NetworkChangeNotifier{client: client}, nil
}

// Publish announces a network-set mutation to every subscribed replica.
func (n *NetworkChangeNotifier) Publish() error {
	return n.client.Publish(networksUpdatedChannel, "1").Err()
}

// Subscribe returns a channel that receives a value each time Publish is
// called by any replica. Callers should select over it alongside their own
// periodic poll ticker; it is closed when ctx is cancelled.
func (n *NetworkChangeNotifier) Subscribe(ctx context.Context) <-chan struct{} {
	sub := n.client.Subscribe(networksUpdatedChannel)
	out := make(chan struct{})

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (n *NetworkChangeNotifier) Close() error {
	return n.client.Close()
}
