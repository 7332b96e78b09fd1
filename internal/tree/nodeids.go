package tree

import (
	"github.com/google/uuid"
)

// NodeIDs hands out stable uids for node paths. Views hold on to the uid
// across refreshes and map it back to the current path.
type NodeIDs struct {
	byUID  map[string]NodeID
	byPath map[string]string
}

// NewNodeIDs creates an empty mapping
func NewNodeIDs() *NodeIDs {
	return &NodeIDs{
		byUID:  make(map[string]NodeID),
		byPath: make(map[string]string),
	}
}

// Map returns the uid of a path, assigning one on first use
func (m *NodeIDs) Map(node NodeID) string {
	key := node.String()
	if uid, ok := m.byPath[key]; ok {
		return uid
	}
	uid := uuid.NewString()
	m.byPath[key] = uid
	m.byUID[uid] = node
	return uid
}

// UID returns the uid of a path without assigning one
func (m *NodeIDs) UID(node NodeID) (string, bool) {
	uid, ok := m.byPath[node.String()]
	return uid, ok
}

// Lookup returns the path mapped to uid
func (m *NodeIDs) Lookup(uid string) (NodeID, bool) {
	node, ok := m.byUID[uid]
	return node, ok
}

// Move points uid at a new path, after the node it names has moved
func (m *NodeIDs) Move(uid string, node NodeID) bool {
	old, ok := m.byUID[uid]
	if !ok {
		return false
	}
	delete(m.byPath, old.String())
	if prev, taken := m.byPath[node.String()]; taken {
		delete(m.byUID, prev)
	}
	m.byUID[uid] = node
	m.byPath[node.String()] = uid
	return true
}

// Forget drops the uid of a path
func (m *NodeIDs) Forget(node NodeID) {
	key := node.String()
	if uid, ok := m.byPath[key]; ok {
		delete(m.byUID, uid)
		delete(m.byPath, key)
	}
}

// ForgetBelow drops the uids of node and all of its descendants
func (m *NodeIDs) ForgetBelow(node NodeID) int {
	dropped := 0
	for uid, path := range m.byUID {
		if path.HasPrefix(node) {
			delete(m.byUID, uid)
			delete(m.byPath, path.String())
			dropped++
		}
	}
	return dropped
}

// childMove says where a child row went during a refresh and whether the
// uids below it stay valid
type childMove struct {
	to   int
	deep bool
}

// reindex rewrites the uids below parent after its children were re-read.
// moves maps old child indices to new ones; uids of children missing from
// moves are dropped, as are those of their descendants unless the move is
// deep. It returns the number of uids dropped.
func (m *NodeIDs) reindex(parent NodeID, moves map[int]childMove) int {
	depth := parent.Depth()
	moved := make(map[string]NodeID)
	dropped := 0
	for uid, path := range m.byUID {
		if path.Depth() <= depth || !path.HasPrefix(parent) {
			continue
		}
		delete(m.byPath, path.String())
		delete(m.byUID, uid)
		mv, ok := moves[path.index[depth]]
		if !ok || (path.Depth() > depth+1 && !mv.deep) {
			dropped++
			continue
		}
		next := NewNodeID(path.index...)
		next.index[depth] = mv.to
		moved[uid] = next
	}
	for uid, path := range moved {
		m.byUID[uid] = path
		m.byPath[path.String()] = uid
	}
	return dropped
}

// Clear drops all mappings
func (m *NodeIDs) Clear() {
	m.byUID = make(map[string]NodeID)
	m.byPath = make(map[string]string)
}

// Len returns the number of mapped paths
func (m *NodeIDs) Len() int {
	return len(m.byUID)
}
