package iocfixture

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Device is a client object bound to IOC records by a prefix. Connect is
// its only suspend point; its retries and timeouts are its own business.
type Device interface {
	Connect(ctx context.Context) error
}

// DeviceFactory constructs a device for a record prefix
type DeviceFactory[D Device] func(prefix string) D

// ConnectDevice constructs a device for prefix and waits for its Connect to
// complete. Connect errors are returned unchanged.
func ConnectDevice[D Device](ctx context.Context, factory DeviceFactory[D], prefix string) (D, error) {
	device := factory(prefix)
	if err := device.Connect(ctx); err != nil {
		var zero D
		return zero, err
	}
	return device, nil
}

// DeviceFixture yields a connected device. Its lifetime is whatever scope it
// is registered in; pair it with a ProcessFixture through DependsOn so the
// IOC is ready before Connect runs.
type DeviceFixture[D Device] struct {
	name           string
	factory        DeviceFactory[D]
	prefix         string
	deps           []string
	connectTimeout time.Duration

	mu        sync.Mutex
	device    D
	connected bool
}

// DeviceOption configures a DeviceFixture
type DeviceOption func(*deviceConfig)

type deviceConfig struct {
	deps           []string
	connectTimeout time.Duration
}

// DependsOn declares fixtures that must be set up before the device connects
func DependsOn(names ...string) DeviceOption {
	return func(c *deviceConfig) {
		c.deps = append(c.deps, names...)
	}
}

// WithConnectTimeout bounds Connect. There is no bound by default, so a
// hanging Connect hangs setup until the caller's context ends.
func WithConnectTimeout(d time.Duration) DeviceOption {
	return func(c *deviceConfig) {
		c.connectTimeout = d
	}
}

// NewDeviceFixture creates a fixture for a device of the factory's type bound
// to prefix. An empty name becomes DefaultDeviceFixtureName.
func NewDeviceFixture[D Device](name string, factory DeviceFactory[D], prefix string, opts ...DeviceOption) *DeviceFixture[D] {
	if name == "" {
		name = DefaultDeviceFixtureName
	}

	var cfg deviceConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &DeviceFixture[D]{
		name:           name,
		factory:        factory,
		prefix:         prefix,
		deps:           cfg.deps,
		connectTimeout: cfg.connectTimeout,
	}
}

// Name returns the fixture name
func (f *DeviceFixture[D]) Name() string {
	return f.name
}

// Prefix returns the record prefix the device is bound to
func (f *DeviceFixture[D]) Prefix() string {
	return f.prefix
}

// Dependencies returns the fixtures declared with DependsOn
func (f *DeviceFixture[D]) Dependencies() []string {
	return append([]string(nil), f.deps...)
}

// Setup constructs the device and waits for Connect. Calling Setup again
// after a successful connect returns the same device.
func (f *DeviceFixture[D]) Setup(ctx context.Context) (D, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return f.device, nil
	}

	if f.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.connectTimeout)
		defer cancel()
	}

	device, err := ConnectDevice(ctx, f.factory, f.prefix)
	if err != nil {
		var zero D
		return zero, err
	}

	f.device = device
	f.connected = true
	return device, nil
}

// Acquire implements Fixture
func (f *DeviceFixture[D]) Acquire(ctx context.Context, _ map[string]any) (any, error) {
	return f.Setup(ctx)
}

// Release implements Fixture. The device holds no resources of its own; its
// channels are dropped by the cache purge in the IOC fixture teardown.
func (f *DeviceFixture[D]) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero D
	f.device = zero
	f.connected = false
	return nil
}

// Use connects the device for tb, failing it on error
func (f *DeviceFixture[D]) Use(tb testing.TB) D {
	tb.Helper()

	device, err := f.Setup(context.Background())
	if err != nil {
		tb.Fatalf("device fixture %s (%s): %v", f.name, f.prefix, err)
	}
	tb.Cleanup(func() { _ = f.Release() })
	return device
}
