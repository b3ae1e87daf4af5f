package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// NextSeq returns a process-wide monotonically increasing sequence number.
// Store keys combine it with a nanosecond timestamp so two messages sent in
// the same nanosecond still order deterministically.
func NextSeq() uint64 {
	return atomic.AddUint64(&idSeq, 1)
}

// GenMessageID returns a new opaque message id. The embedded timestamp and
// sequence make ids unique without coordination; callers must not parse them.
func GenMessageID() string {
	return fmt.Sprintf("msg-%d-%d", time.Now().UTC().UnixNano(), NextSeq())
}
