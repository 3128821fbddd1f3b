// Package graph exports assembled circuits and their regulatory network to
// Neo4j so runs can be inspected and queried as a knowledge graph.
package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

// ComponentNode is the graph projection of one placed component.
type ComponentNode struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Role    string `json:"role"`
	Circuit string `json:"circuit"`
	Bank    string `json:"bank"`
	Channel int    `json:"channel"`
}

// RegulationEdge is the graph projection of one regulatory edge. Floating
// sources hang off a Regulator node instead of a Component.
type RegulationEdge struct {
	Kind     string  `json:"kind"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Floating bool    `json:"floating"`
	K        float64 `json:"k"`
	N        float64 `json:"n"`
}

func componentNode(c *domain.Component) ComponentNode {
	return ComponentNode{
		ID:      c.ID,
		Label:   c.Label,
		Role:    string(c.Role),
		Circuit: c.CircuitName,
		Bank:    c.Bank,
		Channel: c.Channel,
	}
}

func componentToMap(c ComponentNode) map[string]any {
	return map[string]any{
		"id":      c.ID,
		"label":   c.Label,
		"role":    c.Role,
		"circuit": c.Circuit,
		"bank":    c.Bank,
		"channel": c.Channel,
	}
}

func componentFromRecord(record *neo4j.Record) (ComponentNode, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](record, "n")
	if err != nil {
		return ComponentNode{}, err
	}
	return componentFromProps(node.Props), nil
}

func componentFromProps(props map[string]any) ComponentNode {
	c := ComponentNode{
		ID:      strProp(props, "id"),
		Label:   strProp(props, "label"),
		Role:    strProp(props, "role"),
		Circuit: strProp(props, "circuit"),
		Bank:    strProp(props, "bank"),
	}
	if v, ok := props["channel"].(int64); ok {
		c.Channel = int(v)
	}
	return c
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}
