package tester

import "errors"

// Sentinel errors exported by the tester package. No code path in this
// package returns or wraps them: the failures they name (queue overflow,
// spawn failure, bus timeout) are logged and folded back into FSM state,
// and the core never aborts on them (§7).
var (
	ErrQueueOverflow    = errors.New("tester: event queue overflow")
	ErrChildSpawnFailed = errors.New("tester: child process failed to start")
	ErrBusTimeout       = errors.New("tester: bus RPC timed out")
	ErrConfigInvalid    = errors.New("tester: interface configuration invalid")
	ErrUnknownInterface = errors.New("tester: no such interface")
)
