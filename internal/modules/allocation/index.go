// README: Availability index; a candidate hint that commit-time checks override.
package allocation

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

// Index lists drivers and cabs believed to be available. Entries may be stale.
type Index interface {
	AvailableDrivers(ctx context.Context, limit int) ([]types.ID, error)
	AvailableCabs(ctx context.Context, limit int) ([]types.ID, error)
	PutDriver(ctx context.Context, d *fleet.Driver) error
	PutCab(ctx context.Context, c *fleet.Cab) error
	Remove(ctx context.Context, driverID, cabID types.ID) error
	Rebuild(ctx context.Context, drivers []*fleet.Driver, cabs []*fleet.Cab) error
}

// FleetReader is the part of fleet.Store the engine reads.
type FleetReader interface {
	GetDriver(ctx context.Context, id types.ID) (*fleet.Driver, error)
	GetCab(ctx context.Context, id types.ID) (*fleet.Cab, error)
	ListDrivers(ctx context.Context, f fleet.DriverFilter) ([]*fleet.Driver, error)
	ListCabs(ctx context.Context, f fleet.CabFilter) ([]*fleet.Cab, error)
}

// StoreIndex answers straight from the fleet store. Writes are no-ops since
// the store is always current.
type StoreIndex struct {
	fleet FleetReader
}

func NewStoreIndex(fleet FleetReader) *StoreIndex {
	return &StoreIndex{fleet: fleet}
}

func (s *StoreIndex) AvailableDrivers(ctx context.Context, limit int) ([]types.ID, error) {
	drivers, err := s.fleet.ListDrivers(ctx, fleet.DriverFilter{Status: fleet.StatusAvailable, ActiveOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(drivers))
	for i, d := range drivers {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *StoreIndex) AvailableCabs(ctx context.Context, limit int) ([]types.ID, error) {
	cabs, err := s.fleet.ListCabs(ctx, fleet.CabFilter{Status: fleet.StatusAvailable, Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(cabs))
	for i, c := range cabs {
		ids[i] = c.ID
	}
	return ids, nil
}

func (s *StoreIndex) PutDriver(context.Context, *fleet.Driver) error { return nil }
func (s *StoreIndex) PutCab(context.Context, *fleet.Cab) error { return nil }
func (s *StoreIndex) Remove(context.Context, types.ID, types.ID) error { return nil }
func (s *StoreIndex) Rebuild(context.Context, []*fleet.Driver, []*fleet.Cab) error { return nil }

const (
	driversKey = "allocation:drivers:available"
	cabsKey    = "allocation:cabs:available"
)

// RedisIndex keeps available drivers in a sorted set scored by rating and
// available cabs in a sorted set scored by id.
type RedisIndex struct {
	redis *redis.Client
}

func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{redis: client}
}

func (r *RedisIndex) AvailableDrivers(ctx context.Context, limit int) ([]types.ID, error) {
	members, err := r.redis.ZRevRange(ctx, driversKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(members), nil
}

func (r *RedisIndex) AvailableCabs(ctx context.Context, limit int) ([]types.ID, error) {
	members, err := r.redis.ZRange(ctx, cabsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(members), nil
}

func (r *RedisIndex) PutDriver(ctx context.Context, d *fleet.Driver) error {
	if !assignable(d) {
		return r.redis.ZRem(ctx, driversKey, d.ID.String()).Err()
	}
	return r.redis.ZAdd(ctx, driversKey, redis.Z{Score: d.Rating, Member: d.ID.String()}).Err()
}

func (r *RedisIndex) PutCab(ctx context.Context, c *fleet.Cab) error {
	if c.Status != fleet.StatusAvailable {
		return r.redis.ZRem(ctx, cabsKey, c.ID.String()).Err()
	}
	return r.redis.ZAdd(ctx, cabsKey, redis.Z{Score: float64(c.ID), Member: c.ID.String()}).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, driverID, cabID types.ID) error {
	pipe := r.redis.Pipeline()
	pipe.ZRem(ctx, driversKey, driverID.String())
	pipe.ZRem(ctx, cabsKey, cabID.String())
	_, err := pipe.Exec(ctx)
	return err
}

// Rebuild replaces both sets atomically (MULTI/EXEC).
func (r *RedisIndex) Rebuild(ctx context.Context, drivers []*fleet.Driver, cabs []*fleet.Cab) error {
	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, driversKey, cabsKey)
	var dz []redis.Z
	for _, d := range drivers {
		if assignable(d) {
			dz = append(dz, redis.Z{Score: d.Rating, Member: d.ID.String()})
		}
	}
	if len(dz) > 0 {
		pipe.ZAdd(ctx, driversKey, dz...)
	}
	var cz []redis.Z
	for _, c := range cabs {
		if c.Status == fleet.StatusAvailable {
			cz = append(cz, redis.Z{Score: float64(c.ID), Member: c.ID.String()})
		}
	}
	if len(cz) > 0 {
		pipe.ZAdd(ctx, cabsKey, cz...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func parseIDs(members []string) []types.ID {
	ids := make([]types.ID, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, types.ID(n))
	}
	return ids
}
