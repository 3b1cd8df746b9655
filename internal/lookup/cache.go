package lookup

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"exboard/internal/fleet"
	"exboard/pkg/metrics"
)

// Source is the subset of the fleet API needed to build the cache.
type Source interface {
	GetRules(ctx context.Context) ([]fleet.Rule, error)
	GetDevices(ctx context.Context) ([]fleet.Device, error)
}

// Cache holds the rules and devices fetched once per page load. It is
// read-only after construction.
type Cache struct {
	rules      []fleet.Rule
	devices    []fleet.Device
	ruleNames  map[string]string
	assetNames map[string]string
}

// Snapshot is the persisted form of a Cache.
type Snapshot struct {
	Rules   []fleet.Rule   `json:"rules"`
	Devices []fleet.Device `json:"devices"`
}

// Load fetches rules and devices concurrently. If either fetch fails no cache
// is returned.
func Load(ctx context.Context, src Source) (*Cache, error) {
	var (
		rules   []fleet.Rule
		devices []fleet.Device
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rules, err = src.GetRules(gctx)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		devices, err = src.GetDevices(gctx)
		if err != nil {
			return fmt.Errorf("failed to load devices: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := New(rules, devices)
	metrics.SetLookupEntries("rule", len(c.rules))
	metrics.SetLookupEntries("device", len(c.devices))
	return c, nil
}

func New(rules []fleet.Rule, devices []fleet.Device) *Cache {
	c := &Cache{
		rules:      rules,
		devices:    devices,
		ruleNames:  make(map[string]string, len(rules)),
		assetNames: make(map[string]string, len(devices)),
	}
	// first occurrence wins, matching a front-to-back scan
	for _, r := range rules {
		if _, ok := c.ruleNames[r.ID]; !ok {
			c.ruleNames[r.ID] = r.Name
		}
	}
	for _, d := range devices {
		if _, ok := c.assetNames[d.ID]; !ok {
			c.assetNames[d.ID] = d.Name
		}
	}
	return c
}

func FromSnapshot(s Snapshot) *Cache {
	return New(s.Rules, s.Devices)
}

func (c *Cache) Snapshot() Snapshot {
	return Snapshot{Rules: c.Rules(), Devices: c.Assets()}
}

func (c *Cache) FindRuleName(id string) (string, bool) {
	name, ok := c.ruleNames[id]
	return name, ok
}

func (c *Cache) FindAssetName(id string) (string, bool) {
	name, ok := c.assetNames[id]
	return name, ok
}

// Rules returns a copy in fetched order.
func (c *Cache) Rules() []fleet.Rule {
	return append([]fleet.Rule(nil), c.rules...)
}

// Assets returns a copy in fetched order.
func (c *Cache) Assets() []fleet.Device {
	return append([]fleet.Device(nil), c.devices...)
}
