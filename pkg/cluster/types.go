package cluster

import "errors"

// Role indicates how a node takes part in forming the cluster.
type Role string

const (
	// RoleBootstrap is held by the lowest node id; it seeds the initial
	// consensus configuration.
	RoleBootstrap Role = "bootstrap"
	RoleVoter     Role = "voter"
)

// ErrNoLocalNode is returned when the configuration does not identify the
// local process among the declared nodes.
var ErrNoLocalNode = errors.New("local node not found in topology")
