package datasource

import (
	"fmt"
)

// NodeType is the closed set of catalog object kinds.
type NodeType uint8

const (
	NodeUnknown NodeType = iota
	NodeConnection
	NodeDatabase
	NodeSchema
	NodeTable
	NodeView
	NodeMaterializedView
	NodeColumn
	NodeResourceGroup
	NodeStage
	NodePipe
	NodeStream
	NodeTask
	NodeFunction
	NodeProcedure
	NodeFileFormat
	NodeSequence
	NodeNoChild

	// NodeTypeCount sizes dispatch tables indexed by NodeType.
	NodeTypeCount
)

var nodeTypeNames = [...]string{
	NodeUnknown:          "unknown",
	NodeConnection:       "connection",
	NodeDatabase:         "database",
	NodeSchema:           "schema",
	NodeTable:            "table",
	NodeView:             "view",
	NodeMaterializedView: "materialized-view",
	NodeColumn:           "column",
	NodeResourceGroup:    "resource-group",
	NodeStage:            "stage",
	NodePipe:             "pipe",
	NodeStream:           "stream",
	NodeTask:             "task",
	NodeFunction:         "function",
	NodeProcedure:        "procedure",
	NodeFileFormat:       "file-format",
	NodeSequence:         "sequence",
	NodeNoChild:          "no-child",
}

// Adding a NodeType without a name fails to compile here.
var _ [NodeTypeCount]string = nodeTypeNames

var nodeTypesByName = func() map[string]NodeType {
	m := make(map[string]NodeType, len(nodeTypeNames))
	for i, name := range nodeTypeNames {
		m[name] = NodeType(i)
	}
	// alias used by hosts for an already-open connection
	m["connectedConnection"] = NodeConnection
	return m
}()

func (t NodeType) String() string {
	if t < NodeTypeCount {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", uint8(t))
}

// ParseNodeType maps a wire name to its NodeType. Unrecognized names map to
// NodeUnknown rather than failing; navigation treats them as having no children.
func ParseNodeType(s string) NodeType {
	if t, ok := nodeTypesByName[s]; ok {
		return t
	}
	return NodeUnknown
}

func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *NodeType) UnmarshalText(b []byte) error {
	*t = ParseNodeType(string(b))
	return nil
}

// CatalogNode is one entry in the explorer tree. Nodes are built fresh on
// every navigation call and never cached.
type CatalogNode struct {
	Type      NodeType `json:"type" yaml:"type"`
	Label     string   `json:"label" yaml:"label"`
	ChildType NodeType `json:"childType" yaml:"childType"`

	// Identifier is the name as the backend reported it, before any display
	// cleanup of Label. Empty when Label is already the backend name.
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`

	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Schema   string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	IconID   string `json:"iconId,omitempty" yaml:"iconId,omitempty"`
}

// Name is the identifier to use when building further queries against the node.
func (n CatalogNode) Name() string {
	if n.Identifier != "" {
		return n.Identifier
	}
	return n.Label
}

// IsLeaf reports whether the node cannot be expanded.
func (n CatalogNode) IsLeaf() bool {
	return n.ChildType == NodeNoChild
}
