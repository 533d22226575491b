package config

import (
	"net"
	"sort"
	"strconv"
)

// DefaultHeartbeatPortOffset is subtracted from a node's client port to get
// its heartbeat port.
const DefaultHeartbeatPortOffset = 1000

// Node represents a cluster member.
type Node struct {
	ID            uint16 `json:"id"`
	IP            string `json:"ip"`
	ClientPort    int    `json:"client_port"`
	HeartbeatPort int    `json:"heartbeat_port"`
}

// ClientAddr returns the ip:port clients connect to.
func (n Node) ClientAddr() string {
	return net.JoinHostPort(n.IP, strconv.Itoa(n.ClientPort))
}

// HeartbeatAddr returns the ip:port used for liveness traffic.
func (n Node) HeartbeatAddr() string {
	return net.JoinHostPort(n.IP, strconv.Itoa(n.HeartbeatPort))
}

// Topology is the immutable set of nodes declared in the configuration file,
// ordered by ascending ID.
type Topology struct {
	nodes []Node
}

func newTopology(nodes []Node) Topology {
	sorted := append([]Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return Topology{nodes: sorted}
}

// Nodes returns a copy of the nodes in ascending ID order.
func (t Topology) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// IDs returns the node ids in ascending order.
func (t Topology) IDs() []uint16 {
	ids := make([]uint16, 0, len(t.nodes))
	for _, n := range t.nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// Len returns the number of nodes.
func (t Topology) Len() int { return len(t.nodes) }

// Empty reports whether no nodes were declared.
func (t Topology) Empty() bool { return len(t.nodes) == 0 }

// Lookup finds the node with the given id.
func (t Topology) Lookup(id uint16) (Node, bool) {
	i := sort.Search(len(t.nodes), func(i int) bool { return t.nodes[i].ID >= id })
	if i < len(t.nodes) && t.nodes[i].ID == id {
		return t.nodes[i], true
	}
	return Node{}, false
}
