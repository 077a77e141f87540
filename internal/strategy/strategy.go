package strategy

import (
	"errors"
	"fmt"
	"sort"
)

// Strategy evaluates the accumulated price trend and returns an impulse
// in [-1, 1]. Positive values signal sell pressure, negative values buy
// pressure. Implementations must be pure: no hidden state beyond the
// trend they are handed, and never NaN (insufficient warm-up history
// maps to 0, no action).
type Strategy func(trend []float64) float64

// Params carries the numeric calibration of a strategy, decoded from
// the strategy section of the config file.
type Params map[string]float64

// Float returns a required parameter.
func (p Params) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("strategy: missing parameter %q", key)
	}
	return v, nil
}

// Window returns a required parameter interpreted as a positive window size.
func (p Params) Window(key string) (int, error) {
	v, err := p.Float(key)
	if err != nil {
		return 0, err
	}
	n := int(v)
	if n < 2 || float64(n) != v {
		return 0, fmt.Errorf("strategy: parameter %q must be an integer >= 2, got %v", key, v)
	}
	return n, nil
}

// Factory builds a strategy from its calibration parameters.
type Factory func(p Params) (Strategy, error)

// ErrUnknownStrategy is returned when a config names a strategy that is
// not registered.
var ErrUnknownStrategy = errors.New("strategy: unknown strategy")

var bots = map[string]Factory{
	"rsi": NewRSI,
}

// New looks a strategy up by name and builds it. Lookup is validated at
// startup so a typo in the config fails fast instead of trading on nil.
func New(name string, p Params) (Strategy, error) {
	factory, ok := bots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStrategy, name, Names())
	}
	return factory(p)
}

// Names lists the registered strategies, sorted for stable error output.
func Names() []string {
	names := make([]string, 0, len(bots))
	for name := range bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
