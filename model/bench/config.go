package bench

import (
	"fmt"
)

// Config identifies a distinct benchmark scenario. Two runs belong to the same
// configuration if and only if all four fields are equal, so Config is used
// directly as a map key.
type Config struct {
	CommitteeSize uint64 // number of nodes in the committee
	InputRate     uint64 // transactions per second sent by the clients
	TxSize        uint64 // transaction size in bytes
	Duration      uint64 // benchmark duration in seconds
}

func (c Config) String() string {
	return fmt.Sprintf("%d nodes, %d tx/s, %d B, %d s", c.CommitteeSize, c.InputRate, c.TxSize, c.Duration)
}

// Less orders configurations by committee size, input rate, transaction size
// and duration, in that order.
func (c Config) Less(other Config) bool {
	if c.CommitteeSize != other.CommitteeSize {
		return c.CommitteeSize < other.CommitteeSize
	}
	if c.InputRate != other.InputRate {
		return c.InputRate < other.InputRate
	}
	if c.TxSize != other.TxSize {
		return c.TxSize < other.TxSize
	}
	return c.Duration < other.Duration
}

// Parameter names one field of a Config. It is used to vary a single dimension
// when comparing results across configurations.
type Parameter string

const (
	ParameterCommitteeSize Parameter = "committee_size"
	ParameterInputRate     Parameter = "input_rate"
	ParameterTxSize        Parameter = "tx_size"
	ParameterDuration      Parameter = "duration"
)

// Parameters lists every parameter in report field order.
var Parameters = []Parameter{
	ParameterCommitteeSize,
	ParameterInputRate,
	ParameterTxSize,
	ParameterDuration,
}

// ParseParameter converts a parameter name into a Parameter.
func ParseParameter(name string) (Parameter, error) {
	for _, p := range Parameters {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown parameter %q (expected one of %v)", name, Parameters)
}

// Value returns the value of the parameter in the given configuration.
func (p Parameter) Value(c Config) uint64 {
	switch p {
	case ParameterCommitteeSize:
		return c.CommitteeSize
	case ParameterInputRate:
		return c.InputRate
	case ParameterTxSize:
		return c.TxSize
	case ParameterDuration:
		return c.Duration
	default:
		panic(fmt.Sprintf("unknown parameter %q", string(p)))
	}
}

// Without returns a copy of the configuration with the parameter's field zeroed.
// Configurations that are equal after removing the varied parameter belong to
// the same comparison series.
func (p Parameter) Without(c Config) Config {
	switch p {
	case ParameterCommitteeSize:
		c.CommitteeSize = 0
	case ParameterInputRate:
		c.InputRate = 0
	case ParameterTxSize:
		c.TxSize = 0
	case ParameterDuration:
		c.Duration = 0
	default:
		panic(fmt.Sprintf("unknown parameter %q", string(p)))
	}
	return c
}

// Label is the human readable axis label of the parameter.
func (p Parameter) Label() string {
	switch p {
	case ParameterCommitteeSize:
		return "Committee size"
	case ParameterInputRate:
		return "Input rate (tx/s)"
	case ParameterTxSize:
		return "Transaction size (B)"
	case ParameterDuration:
		return "Duration (s)"
	default:
		return string(p)
	}
}

// Format renders the parameter's value in the configuration with its unit.
func (p Parameter) Format(c Config) string {
	switch p {
	case ParameterCommitteeSize:
		return fmt.Sprintf("%d nodes", c.CommitteeSize)
	case ParameterInputRate:
		return fmt.Sprintf("%d tx/s", c.InputRate)
	case ParameterTxSize:
		return fmt.Sprintf("%d B", c.TxSize)
	case ParameterDuration:
		return fmt.Sprintf("%d s", c.Duration)
	default:
		panic(fmt.Sprintf("unknown parameter %q", string(p)))
	}
}

func (p Parameter) String() string {
	return string(p)
}

// NodeParameters are the node settings echoed in a log header. They describe the
// run but are not part of the configuration identity.
type NodeParameters struct {
	TimeoutDelay   uint64 // consensus timeout delay in ms
	SyncRetryDelay uint64 // consensus sync retry delay in ms
	QueueCapacity  uint64 // mempool queue capacity in payloads
	MaxPayloadSize uint64 // mempool max payload size in bytes
}
