package actor

import (
	"ergo.services/actor/gen"
	"ergo.services/actor/node"
)

// StartNode starts a new node with the given options.
func StartNode(options gen.NodeOptions) (gen.Node, error) {
	return node.Start(options, FrameworkVersion)
}
