package loop

import (
	"fmt"
	"time"
)

// Fallback selects what a tick emits when the model fails to evaluate.
type Fallback string

const (
	FallbackHoldLast Fallback = "hold_last"
	FallbackZero     Fallback = "zero"
	FallbackAbort    Fallback = "abort"
)

func ParseFallback(s string) (Fallback, error) {
	switch f := Fallback(s); f {
	case FallbackHoldLast, FallbackZero, FallbackAbort:
		return f, nil
	case "":
		return FallbackHoldLast, nil
	}
	return "", fmt.Errorf("unknown fallback policy: %s (want hold_last, zero or abort)", s)
}

// AdaptationMode selects where adapter computations run.
type AdaptationMode string

const (
	// AdaptSync proposes and commits at the end of each tick.
	AdaptSync AdaptationMode = "sync"
	// AdaptAsync proposes on a worker; results are committed at the first
	// tick boundary after they complete and never delay a tick.
	AdaptAsync AdaptationMode = "async"
)

func ParseAdaptationMode(s string) (AdaptationMode, error) {
	switch m := AdaptationMode(s); m {
	case AdaptSync, AdaptAsync:
		return m, nil
	case "":
		return AdaptAsync, nil
	}
	return "", fmt.Errorf("unknown adaptation mode: %s (want sync or async)", s)
}

type Config struct {
	// TickInterval is the scheduling period; 0 runs ticks back to back.
	TickInterval       time.Duration
	SnapshotTimeout    time.Duration
	WindowCapacity     int
	Fallback           Fallback
	ActuatorFaultFatal bool
	Adaptation         AdaptationMode
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    10 * time.Millisecond,
		SnapshotTimeout: 100 * time.Millisecond,
		WindowCapacity:  64,
		Fallback:        FallbackHoldLast,
		Adaptation:      AdaptAsync,
	}
}

func (c Config) Validate() error {
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval must not be negative, got %v", c.TickInterval)
	}
	if c.SnapshotTimeout <= 0 {
		return fmt.Errorf("snapshot timeout must be positive, got %v", c.SnapshotTimeout)
	}
	if c.WindowCapacity < 1 {
		return fmt.Errorf("window capacity must be positive, got %d", c.WindowCapacity)
	}
	if _, err := ParseFallback(string(c.Fallback)); err != nil {
		return err
	}
	if _, err := ParseAdaptationMode(string(c.Adaptation)); err != nil {
		return err
	}
	return nil
}
