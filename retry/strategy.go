package retry

import "fmt"

var strategyNames map[Strategy]string
var namedStrategies map[string]Strategy

func init() {
	strategyNames = map[Strategy]string{
		Fixed:       "fixed",
		Linear:      "linear",
		Exponential: "exponential",
	}

	namedStrategies = make(map[string]Strategy, len(strategyNames))
	for k, v := range strategyNames {
		namedStrategies[v] = k
	}
}

// StrategyFromString parses a backoff strategy from its name.
func StrategyFromString(name string) (Strategy, error) {
	if v, ok := namedStrategies[name]; ok {
		return v, nil
	}
	return Fixed, fmt.Errorf("invalid backoff strategy %q", name)
}

// Strategy defines how the delay between attempts grows.
type Strategy uint8

const (
	// Fixed keeps the same delay across all attempts
	Fixed Strategy = iota
	// Linear multiplies the base delay with the attempt number
	Linear
	// Exponential doubles the delay with every attempt
	Exponential
)

func (s Strategy) String() string {
	return strategyNames[s]
}

// MarshalText renders this strategy to text
func (s Strategy) MarshalText() (text []byte, err error) {
	return []byte(strategyNames[s]), nil
}

// UnmarshalText parses this strategy from text
func (s *Strategy) UnmarshalText(text []byte) error {
	st, err := StrategyFromString(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
