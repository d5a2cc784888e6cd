package transport

import (
	"fmt"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/transport/pmq"
	"github.com/redhat-performance/rusty-comms-sub000/transport/shm"
	"github.com/redhat-performance/rusty-comms-sub000/transport/tcp"
	"github.com/redhat-performance/rusty-comms-sub000/transport/uds"
)

// New dispatches on mechanism and returns a fresh, idle api.Transport. This
// is the tagged-sum-plus-dispatch-function replacement for the trait object
// the original implementation used: callers hold only an api.Transport,
// and per-mechanism behavior lives entirely inside each constructor.
func New(mechanism api.Mechanism) (api.Transport, error) {
	switch mechanism {
	case api.MechanismUnixSocket:
		return uds.New(), nil
	case api.MechanismTCP:
		return tcp.New(), nil
	case api.MechanismPOSIXQueue:
		return pmq.New(), nil
	case api.MechanismSharedMemory:
		return shm.New(), nil
	default:
		return nil, fmt.Errorf("transport: unknown mechanism %v: %w", mechanism, api.ErrNotSupported)
	}
}
