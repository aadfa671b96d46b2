package state

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"
)

// ValkeyManager shares availability between replicas behind one load balancer.
type ValkeyManager struct {
	client valkey.Client
	clock  clock.Clock
}

func NewValkeyManager(client valkey.Client) *ValkeyManager {
	return newValkeyManagerWithClock(client, clock.New())
}

func newValkeyManagerWithClock(client valkey.Client, clk clock.Clock) *ValkeyManager {
	return &ValkeyManager{client: client, clock: clk}
}

func (r *ValkeyManager) SaveAvailability(ctx context.Context, backend string, available bool) error {
	data, err := json.Marshal(Availability{
		Available: available,
		CheckedAt: r.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	return r.client.Do(
		ctx, r.client.B().Set().
			Key(availabilityKey(backend)).
			Value(valkey.BinaryString(data)).
			Build(),
	).Error()
}

func (r *ValkeyManager) LoadAvailability(ctx context.Context, backend string) (Availability, error) {
	valkeyResponse := r.client.Do(ctx, r.client.B().Get().Key(availabilityKey(backend)).Build())
	if err := valkeyResponse.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return Availability{}, nil
		}
		return Availability{}, err
	}

	data, err := valkeyResponse.AsBytes()
	if err != nil {
		return Availability{}, fmt.Errorf("failed to read availability: %w", err)
	}

	var availability Availability
	if err := json.Unmarshal(data, &availability); err != nil {
		return Availability{}, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	return availability, nil
}

func availabilityKey(backend string) string {
	return fmt.Sprintf("nyaysetu:availability:%s", backend)
}
