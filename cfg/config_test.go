package cfg

import "testing"

func TestValidate_ValidConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = &Configuration{
		NodeID: 1,
		Pool: PoolConfiguration{
			Name:                 "test",
			DataDir:              "./test-data",
			CapacityBytes:        1 << 20,
			CompressionThreshold: 512,
			DecodeCacheSize:      1024,
			SweepIntervalMS:      1000,
			LockTimeoutMS:        2000,
		},
		Watch:  WatchConfiguration{PollIntervalMS: 50},
		Router: RouterConfiguration{CallTimeoutMS: 5000},
		Rooms:  RoomsConfiguration{KeyPrefix: "room:"},
		Prometheus: PrometheusConfiguration{
			Enabled: true,
			Port:    9090,
		},
	}

	if err := Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_InvalidPoolCapacity(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	for _, capacity := range []int64{-1, 0, 100} {
		Config = &Configuration{
			Pool:   PoolConfiguration{CapacityBytes: capacity, LockTimeoutMS: 1},
			Watch:  WatchConfiguration{PollIntervalMS: 1},
			Router: RouterConfiguration{CallTimeoutMS: 1},
			Rooms:  RoomsConfiguration{KeyPrefix: "room:"},
		}
		if err := Validate(); err == nil {
			t.Errorf("expected error for invalid pool capacity %d", capacity)
		}
	}
}

func TestValidate_InvalidPrometheusPort(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	for _, port := range []int{-1, 0, 70000} {
		Config = &Configuration{
			Pool:       PoolConfiguration{CapacityBytes: 1 << 20, LockTimeoutMS: 1},
			Watch:      WatchConfiguration{PollIntervalMS: 1},
			Router:     RouterConfiguration{CallTimeoutMS: 1},
			Rooms:      RoomsConfiguration{KeyPrefix: "room:"},
			Prometheus: PrometheusConfiguration{Enabled: true, Port: port},
		}
		if err := Validate(); err == nil {
			t.Errorf("expected error for invalid prometheus port %d", port)
		}
	}
}

func TestValidate_EmptyRoomsPrefixRejected(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = &Configuration{
		Pool:   PoolConfiguration{CapacityBytes: 1 << 20, LockTimeoutMS: 1},
		Watch:  WatchConfiguration{PollIntervalMS: 1},
		Router: RouterConfiguration{CallTimeoutMS: 1},
		Rooms:  RoomsConfiguration{KeyPrefix: ""},
	}
	if err := Validate(); err == nil {
		t.Error("expected error for empty rooms key prefix")
	}
}

func TestValidate_InvalidLoggingFormatRejected(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = &Configuration{
		Pool:    PoolConfiguration{CapacityBytes: 1 << 20, LockTimeoutMS: 1},
		Watch:   WatchConfiguration{PollIntervalMS: 1},
		Router:  RouterConfiguration{CallTimeoutMS: 1},
		Rooms:   RoomsConfiguration{KeyPrefix: "room:"},
		Logging: LoggingConfiguration{Format: "xml"},
	}
	if err := Validate(); err == nil {
		t.Error("expected error for invalid logging format")
	}
}

func TestDurationHelpers(t *testing.T) {
	pc := PoolConfiguration{SweepIntervalMS: 1000, LockTimeoutMS: 2000}
	if pc.SweepInterval().Seconds() != 1 {
		t.Errorf("expected 1s sweep interval, got %v", pc.SweepInterval())
	}
	if pc.LockTimeout().Seconds() != 2 {
		t.Errorf("expected 2s lock timeout, got %v", pc.LockTimeout())
	}

	wc := WatchConfiguration{PollIntervalMS: 50}
	if wc.PollInterval().Milliseconds() != 50 {
		t.Errorf("expected 50ms poll interval, got %v", wc.PollInterval())
	}

	rc := RouterConfiguration{CallTimeoutMS: 5000}
	if rc.CallTimeout().Seconds() != 5 {
		t.Errorf("expected 5s call timeout, got %v", rc.CallTimeout())
	}
}
