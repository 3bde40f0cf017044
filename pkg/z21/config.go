package z21

import "time"

// DefaultPort is the Z21's fixed UDP port, used for both directions
// (spec §4.5, §6).
const DefaultPort = 21105

// PowerPolicy resolves the Open Question in spec §9 about whether track
// power is always restored after an explicit programming operation, or left
// as the reference's "hack" (disable only if the pending table happens to
// be empty) would leave it.
type PowerPolicy uint8

const (
	// PowerPolicyAlwaysRestoreAfterProgramming re-enables track power at
	// the end of every CV read/write, regardless of what else is pending.
	PowerPolicyAlwaysRestoreAfterProgramming PowerPolicy = iota
	// PowerPolicyLeaveAsIs mirrors the reference's ambiguous behavior:
	// power is restored only when the pending-request list is empty.
	PowerPolicyLeaveAsIs
)

// Config carries the connection and timing parameters for a Client; it
// mirrors the teacher's option-struct + constructor convention
// (pkg/config.NodeConfigurator) rather than a flag/env framework.
type Config struct {
	Host string
	Port int

	ConnectTimeout     time.Duration
	IdleCoalesce       time.Duration
	RetransmitInterval time.Duration
	StaleAfter         time.Duration
	ProgrammingTimeout time.Duration

	PowerPolicy PowerPolicy
}

// DefaultConfig returns the parameter set spec §4.5 describes: 2s connect
// timeout, 50ms idle-coalesce, 1s retransmit sweep, 2s staleness, 5s
// programming timeout.
func DefaultConfig(host string) Config {
	return Config{
		Host:               host,
		Port:               DefaultPort,
		ConnectTimeout:     2 * time.Second,
		IdleCoalesce:       50 * time.Millisecond,
		RetransmitInterval: 1 * time.Second,
		StaleAfter:         2 * time.Second,
		ProgrammingTimeout: 5 * time.Second,
		PowerPolicy:        PowerPolicyAlwaysRestoreAfterProgramming,
	}
}
