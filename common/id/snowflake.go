package id

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
)

// IDs count milliseconds from 2024-01-01 UTC.
const epochMillis int64 = 1704067200000

// Ten node bits, the snowflake default.
const maxNode = 1023

var (
	initMu sync.Mutex
	nodeID int64
	node   atomic.Pointer[snowflake.Node]
)

// Init selects the node this process generates IDs for. Replicas sharing a
// database need distinct node IDs. Repeating Init with the same node ID is a
// no-op.
func Init(id int64) error {
	if id < 0 || id > maxNode {
		return fmt.Errorf("node id %d outside [0, %d]", id, maxNode)
	}

	initMu.Lock()
	defer initMu.Unlock()

	if node.Load() != nil {
		if id == nodeID {
			return nil
		}
		return fmt.Errorf("id generator already running as node %d", nodeID)
	}

	snowflake.Epoch = epochMillis
	n, err := snowflake.NewNode(id)
	if err != nil {
		return fmt.Errorf("creating snowflake node: %w", err)
	}
	nodeID = id
	node.Store(n)
	return nil
}

// New returns a unique, time-ordered ID. It panics if Init has not run.
func New() int64 {
	n := node.Load()
	if n == nil {
		panic("id: New called before Init")
	}
	return n.Generate().Int64()
}

// Time reports when id was generated, to the millisecond.
func Time(id int64) time.Time {
	return time.UnixMilli(snowflake.ID(id).Time())
}
