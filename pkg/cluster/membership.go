package cluster

import (
	"fmt"

	"qcache/config"
)

// Membership is the static view of the cluster from the local node.
type Membership struct {
	topo config.Topology
	self config.Node
}

// NewMembership builds a membership view. self is expected to be part of topo.
func NewMembership(topo config.Topology, self config.Node) *Membership {
	return &Membership{topo: topo, self: self}
}

// FromResolver resolves the topology and local node and builds the view.
func FromResolver(r *config.Resolver) (*Membership, error) {
	topo, err := r.Topology()
	if err != nil {
		return nil, fmt.Errorf("resolve topology: %w", err)
	}
	self, ok, err := r.LocalNode()
	if err != nil {
		return nil, fmt.Errorf("resolve local node: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLocalNode, r.ConfigPath())
	}
	return NewMembership(topo, self), nil
}

// Self returns the local node.
func (m *Membership) Self() config.Node { return m.self }

// Topology returns the underlying topology.
func (m *Membership) Topology() config.Topology { return m.topo }

// Members returns all nodes, the local one included, in ascending id order.
func (m *Membership) Members() []config.Node { return m.topo.Nodes() }

// Peers returns every member except the local node.
func (m *Membership) Peers() []config.Node {
	nodes := m.topo.Nodes()
	out := make([]config.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID != m.self.ID {
			out = append(out, n)
		}
	}
	return out
}

// Node looks up a member by id.
func (m *Membership) Node(id uint16) (config.Node, bool) { return m.topo.Lookup(id) }

// IsMember reports whether id is declared.
func (m *Membership) IsMember(id uint16) bool {
	_, ok := m.topo.Lookup(id)
	return ok
}

// Size returns the number of members.
func (m *Membership) Size() int { return m.topo.Len() }

// Quorum returns the number of members needed for a majority.
func (m *Membership) Quorum() int { return m.topo.Len()/2 + 1 }

// Role returns the role of a member; the smallest id bootstraps.
func (m *Membership) Role(id uint16) Role {
	ids := m.topo.IDs()
	if len(ids) > 0 && ids[0] == id {
		return RoleBootstrap
	}
	return RoleVoter
}

// IsBootstrap reports whether the local node seeds the cluster.
func (m *Membership) IsBootstrap() bool { return m.Role(m.self.ID) == RoleBootstrap }
