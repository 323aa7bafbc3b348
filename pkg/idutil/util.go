package idutil

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init sets the snowflake node of this process. It must be called before
// the first NewID if the process is not node 0.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	nodeOnce.Do(func() {})
	node = n
	return nil
}

func NewID() int64 {
	nodeOnce.Do(func() {
		if node == nil {
			n, err := snowflake.NewNode(0)
			if err != nil {
				panic(err)
			}
			node = n
		}
	})

	return node.Generate().Int64()
}

// TimeOf returns the unix milliseconds encoded in a snowflake id.
func TimeOf(id int64) int64 {
	return snowflake.ParseInt64(id).Time()
}
