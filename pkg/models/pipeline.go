package models

import "time"

// Pipeline is the document holding a project's nodes. Node order is the
// declaration order and breaks topological-sort ties, so identical graphs
// execute in the same order across runs.
type Pipeline struct {
	ID        string    `json:"id"         validate:"required"`
	Name      string    `json:"name"       validate:"required,min=1"`
	Nodes     []*Node   `json:"nodes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (p *Pipeline) NodeByID(id string) *Node {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// NodeIDs returns node ids in declaration order.
func (p *Pipeline) NodeIDs() []string {
	ids := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		ids = append(ids, n.ID)
	}

	return ids
}
