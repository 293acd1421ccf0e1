package tenant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/vectorstore"
)

// Deployment modes.
const (
	// ModeSingle serves every tenant from one endpoint; physical names
	// carry no cluster prefix.
	ModeSingle = "single"

	// ModeMulti shards tenants across named clusters; physical names
	// are prefixed with the cluster.
	ModeMulti = "multi"
)

// DefaultCluster receives tenants with no explicit assignment.
const DefaultCluster = "default"

// Config configures the router.
type Config struct {
	// Mode is "single" or "multi".
	Mode string `koanf:"mode"`

	// Endpoints maps cluster name to its vector-store endpoint. Single
	// mode uses exactly one entry, keyed by the default cluster.
	Endpoints map[string]vectorstore.Config `koanf:"endpoints"`

	// Assignments maps tenant id to cluster name. Tenants not listed
	// route to the default cluster. Multi mode only.
	Assignments map[string]string `koanf:"assignments"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeSingle
	}
	if len(c.Endpoints) == 0 {
		defaults := vectorstore.Config{}
		defaults.ApplyDefaults()
		c.Endpoints = map[string]vectorstore.Config{DefaultCluster: defaults}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingle, ModeMulti:
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeSingle, ModeMulti, c.Mode)
	}

	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: at least one endpoint required", ErrInvalidConfig)
	}
	if c.Mode == ModeSingle && len(c.Endpoints) != 1 {
		return fmt.Errorf("%w: single mode takes exactly one endpoint, got %d", ErrInvalidConfig, len(c.Endpoints))
	}
	if _, ok := c.Endpoints[DefaultCluster]; !ok {
		return fmt.Errorf("%w: endpoint %q required", ErrInvalidConfig, DefaultCluster)
	}

	for name := range c.Endpoints {
		if err := ValidateClusterName(name); err != nil {
			return err
		}
	}
	for tenantID, cluster := range c.Assignments {
		if err := ValidateTenantID(tenantID); err != nil {
			return err
		}
		if _, ok := c.Endpoints[cluster]; !ok {
			return fmt.Errorf("%w: tenant %q assigned to unknown cluster %q", ErrInvalidConfig, tenantID, cluster)
		}
	}
	return nil
}

// DialFunc connects to one vector-store endpoint. Injected by tests.
type DialFunc func(config vectorstore.Config, logger *logging.Logger) (vectorstore.Store, error)

// Option customizes router construction.
type Option func(*Router)

// WithDialFunc overrides how endpoint connections are established.
func WithDialFunc(dial DialFunc) Option {
	return func(r *Router) { r.dial = dial }
}

// Router maps tenants to cluster handles and derives the physical
// collection names under which their data lives.
type Router struct {
	config Config
	logger *logging.Logger
	dial   DialFunc

	mu      sync.RWMutex
	clients map[string]vectorstore.Store
}

// NewRouter connects to every configured endpoint and returns the
// router. A single unreachable endpoint fails construction; partial
// routing tables hide data.
func NewRouter(config Config, logger *logging.Logger, opts ...Option) (*Router, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating router config: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger required", ErrInvalidConfig)
	}

	r := &Router{
		config:  config,
		logger:  logger.Named("tenant"),
		clients: make(map[string]vectorstore.Store, len(config.Endpoints)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dial == nil {
		r.dial = func(cfg vectorstore.Config, logger *logging.Logger) (vectorstore.Store, error) {
			return vectorstore.New(cfg, logger)
		}
	}

	for name, endpoint := range config.Endpoints {
		client, err := r.dial(endpoint, logger)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("connecting cluster %s: %w", name, err)
		}
		r.clients[name] = client
	}

	r.logger.Info(context.Background(), "tenant router ready",
		zap.String("mode", config.Mode),
		zap.Int("clusters", len(r.clients)),
	)
	return r, nil
}

// ClusterFor returns the cluster a tenant's data lives on.
func (r *Router) ClusterFor(tenantID string) string {
	if r.config.Mode == ModeSingle {
		return DefaultCluster
	}
	if cluster, ok := r.config.Assignments[tenantID]; ok {
		return cluster
	}
	return DefaultCluster
}

// Resolve returns the store handle serving a tenant. A configured
// assignment pointing at a cluster with no handle is a deployment
// error, not a per-request condition.
func (r *Router) Resolve(tenantID string) (vectorstore.Store, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	cluster := r.ClusterFor(tenantID)

	r.mu.RLock()
	client, ok := r.clients[cluster]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotConfigured, cluster)
	}
	return client, nil
}

// ResolveCluster returns the store handle for a cluster by name.
func (r *Router) ResolveCluster(cluster string) (vectorstore.Store, error) {
	r.mu.RLock()
	client, ok := r.clients[cluster]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotConfigured, cluster)
	}
	return client, nil
}

// RegisterCluster connects a new cluster at runtime. Registering an
// existing name replaces its handle; the old handle is closed.
func (r *Router) RegisterCluster(name string, endpoint vectorstore.Config) error {
	if err := ValidateClusterName(name); err != nil {
		return err
	}

	client, err := r.dial(endpoint, r.logger)
	if err != nil {
		return fmt.Errorf("connecting cluster %s: %w", name, err)
	}

	r.mu.Lock()
	old := r.clients[name]
	r.clients[name] = client
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	r.logger.Info(context.Background(), "cluster registered", zap.String("cluster", name))
	return nil
}

// Clusters returns the configured cluster names, sorted.
func (r *Router) Clusters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PhysicalName derives the physical collection name for a tenant's
// logical collection. clusterOverride forces a cluster prefix in
// multi mode; empty uses the tenant's assignment.
func (r *Router) PhysicalName(tenantID, collection, clusterOverride string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}

	if r.config.Mode == ModeSingle {
		return physicalName("", tenantID, collection), nil
	}

	cluster := clusterOverride
	if cluster == "" {
		cluster = r.ClusterFor(tenantID)
	} else if err := ValidateClusterName(cluster); err != nil {
		return "", err
	}
	return physicalName(cluster, tenantID, collection), nil
}

// ParsePhysicalName decodes a physical collection name back into its
// identity. Round-trips with PhysicalName.
func (r *Router) ParsePhysicalName(name string) (Identity, error) {
	rest := name
	var cluster string

	if r.config.Mode == ModeMulti {
		idx := strings.Index(rest, "_")
		if idx <= 0 {
			return Identity{}, fmt.Errorf("%w: %q has no cluster prefix", ErrInvalidPhysicalName, name)
		}
		cluster = rest[:idx]
		if err := ValidateClusterName(cluster); err != nil {
			return Identity{}, fmt.Errorf("%w: %q", ErrInvalidPhysicalName, name)
		}
		rest = rest[idx+1:]
	}

	idx := strings.Index(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidPhysicalName, name)
	}

	id := Identity{
		Cluster:    cluster,
		TenantID:   rest[:idx],
		Collection: rest[idx+1:],
	}
	if err := ValidateTenantID(id.TenantID); err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidPhysicalName, name)
	}
	if err := ValidateCollection(id.Collection); err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidPhysicalName, name)
	}
	return id, nil
}

// Close closes all cluster handles.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAllLocked()
}

func (r *Router) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.closeAllLocked()
}

func (r *Router) closeAllLocked() error {
	var firstErr error
	for name, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing cluster %s: %w", name, err)
		}
		delete(r.clients, name)
	}
	return firstErr
}
