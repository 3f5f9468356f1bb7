package bus

import (
	"encoding/json"
	"errors"
)

// ErrTimeout wraps every RPC failure caused by the caller's context
// expiring before a reply arrived (kind-2 bus transient failure, §7).
var ErrTimeout = errors.New("bus: rpc timed out")

func encodeReply(reply any) ([]byte, error) {
	if reply == nil {
		return nil, nil
	}
	if b, ok := reply.([]byte); ok {
		return b, nil
	}
	return json.Marshal(reply)
}
