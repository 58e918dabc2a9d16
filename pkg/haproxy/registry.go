package haproxy

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultInstanceName is the implicit instance name used when configuration
// supplies a single unnamed address.
const DefaultInstanceName = "default"

// Instance is one configured balancer endpoint with its capability client.
// Instances are created at process start and immutable afterwards.
type Instance struct {
	name   string
	addr   string
	client *Client
}

// NewInstance pairs a configured name and address with a client. Intended
// for wiring that constructs clients itself (tests use it with stub
// transports).
func NewInstance(name, addr string, client *Client) *Instance {
	return &Instance{name: name, addr: addr, client: client}
}

// Name returns the configured instance name.
func (i *Instance) Name() string { return i.name }

// Addr returns the configured endpoint address string.
func (i *Instance) Addr() string { return i.addr }

// Client returns the instance's protocol client.
func (i *Instance) Client() *Client { return i.client }

// InstanceStatus is one entry of a registry listing. Available is probed at
// call time, never cached: a stale "available: true" is worse than a
// slightly slower response.
type InstanceStatus struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	Available bool   `json:"available"`
}

// Registry maps instance names to balancer endpoints for the process
// lifetime. The table is read-only after construction and needs no locking.
type Registry struct {
	order     []string
	instances map[string]*Instance
}

// NewRegistry parses an instance specification and builds one client per
// endpoint. The specification is either a single bare address (implicitly
// named "default") or a comma-separated list of name=address pairs.
// Duplicate names and malformed addresses are configuration errors here,
// at startup, not per-request faults.
func NewRegistry(spec string, timeout time.Duration) (*Registry, error) {
	defs, err := parseInstanceSpec(spec)
	if err != nil {
		return nil, err
	}

	instances := make([]*Instance, 0, len(defs))
	for _, def := range defs {
		client, err := NewClient(def.addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", def.name, err)
		}
		instances = append(instances, NewInstance(def.name, def.addr, client))
	}

	return NewStaticRegistry(instances)
}

// NewStaticRegistry builds a registry from pre-built instances, preserving
// their order.
func NewStaticRegistry(instances []*Instance) (*Registry, error) {
	r := &Registry{instances: make(map[string]*Instance, len(instances))}
	for _, inst := range instances {
		if _, exists := r.instances[inst.name]; exists {
			return nil, fmt.Errorf("duplicate haproxy instance name %q", inst.name)
		}
		r.instances[inst.name] = inst
		r.order = append(r.order, inst.name)
	}
	return r, nil
}

type instanceDef struct {
	name string
	addr string
}

func parseInstanceSpec(spec string) ([]instanceDef, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("no haproxy instances configured")
	}

	// A single bare address configures the implicit default instance.
	if !strings.Contains(spec, "=") {
		if strings.Contains(spec, ",") {
			return nil, fmt.Errorf("multiple haproxy instances require name=address pairs")
		}
		return []instanceDef{{name: DefaultInstanceName, addr: spec}}, nil
	}

	var defs []instanceDef
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, addr, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		addr = strings.TrimSpace(addr)
		if !found || name == "" || addr == "" {
			return nil, fmt.Errorf("malformed haproxy instance entry %q, expected name=address", pair)
		}
		defs = append(defs, instanceDef{name: name, addr: addr})
	}
	return defs, nil
}

// Resolve returns the named instance. An empty name resolves to "default"
// when one is configured, or to the only instance when exactly one exists;
// otherwise the lookup fails with InstanceNotFoundError.
func (r *Registry) Resolve(name string) (*Instance, error) {
	if name == "" {
		if inst, ok := r.instances[DefaultInstanceName]; ok {
			return inst, nil
		}
		if len(r.order) == 1 {
			return r.instances[r.order[0]], nil
		}
		return nil, InstanceNotFoundError{Name: DefaultInstanceName, Available: r.Names()}
	}

	inst, ok := r.instances[name]
	if !ok {
		return nil, InstanceNotFoundError{Name: name, Available: r.Names()}
	}
	return inst, nil
}

// Names returns the configured instance names in configuration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List reports every configured instance with its availability, probed
// concurrently at call time and rendered in configuration order.
func (r *Registry) List() []InstanceStatus {
	statuses := make([]InstanceStatus, len(r.order))

	var wg sync.WaitGroup
	for i, name := range r.order {
		inst := r.instances[name]
		statuses[i] = InstanceStatus{Name: inst.name, Endpoint: inst.addr}

		wg.Add(1)
		go func(i int, inst *Instance) {
			defer wg.Done()
			statuses[i].Available = inst.client.HealthCheck()
		}(i, inst)
	}
	wg.Wait()

	return statuses
}
