package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
	"github.com/GeneBoardAI/geneboard-mvp/pkg/repo"
)

// GraphStore provides graph operations on top of the generic Neo4j
// repository.
type GraphStore struct {
	driver     neo4j.DriverWithContext
	components *repo.Neo4jRepo[ComponentNode, string]
}

// New creates a GraphStore.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{
		driver: driver,
		components: repo.NewNeo4jRepo[ComponentNode, string](
			driver, "Component", componentToMap, componentFromRecord),
	}
}

// GetComponent returns a component node by board ID.
func (g *GraphStore) GetComponent(ctx context.Context, id string) (ComponentNode, error) {
	return g.components.Get(ctx, id)
}

// SaveNetwork writes one run's circuits, components, regulators and
// regulatory edges in a single transaction. Nodes merge on their natural
// keys, so re-exporting a run is idempotent.
func (g *GraphStore) SaveNetwork(ctx context.Context, runID string, circuits []*domain.Circuit, regs []domain.Regulation) error {
	rows := networkRows(runID, circuits, regs)

	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			`UNWIND $rows AS row
			 MERGE (c:Circuit {name: row.name})
			 SET c.run_id = row.run_id`,
			map[string]any{"rows": rows.circuits}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx,
			`UNWIND $rows AS row
			 MERGE (n:Component {id: row.id})
			 SET n += row.props
			 WITH n, row
			 MATCH (c:Circuit {name: row.props.circuit})
			 MERGE (n)-[:PART_OF]->(c)`,
			map[string]any{"rows": rows.components}); err != nil {
			return nil, err
		}
		if len(rows.regulators) > 0 {
			if _, err := tx.Run(ctx,
				`UNWIND $rows AS row MERGE (:Regulator {key: row.key})`,
				map[string]any{"rows": rows.regulators}); err != nil {
				return nil, err
			}
		}
		for rel, edges := range rows.edgesByType {
			cypher := fmt.Sprintf(
				`UNWIND $rows AS row
				 MATCH (b:Component {label: row.target})
				 WHERE b.role = 'promoter'
				 OPTIONAL MATCH (src:Component {label: row.source})
				 WHERE src.role = 'cds'
				 OPTIONAL MATCH (reg:Regulator {key: row.source})
				 WITH row, b, coalesce(src, reg) AS a
				 WHERE a IS NOT NULL
				 MERGE (a)-[r:%s]->(b)
				 SET r.kind = row.kind, r.k = row.k, r.n = row.n`,
				rel)
			if _, err := tx.Run(ctx, cypher, map[string]any{"rows": edges}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// CountsByKind counts regulatory edges grouped by kind across the graph.
func (g *GraphStore) CountsByKind(ctx context.Context) (map[string]int, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH ()-[r]->() WHERE r.kind IS NOT NULL
		 RETURN r.kind AS kind, count(r) AS n`, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for result.Next(ctx) {
		record := result.Record()
		kind, _ := record.Get("kind")
		n, _ := record.Get("n")
		if k, ok := kind.(string); ok {
			if v, ok := n.(int64); ok {
				counts[k] = int(v)
			}
		}
	}
	return counts, nil
}

// ComponentsByRole returns all component nodes of one role.
func (g *GraphStore) ComponentsByRole(ctx context.Context, role domain.Role) ([]ComponentNode, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (n:Component {role: $role}) RETURN n`,
		map[string]any{"role": string(role)})
	if err != nil {
		return nil, err
	}
	var items []ComponentNode
	for result.Next(ctx) {
		node, err := componentFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, node)
	}
	return items, nil
}

// network holds the parameter batches for one SaveNetwork transaction.
type network struct {
	circuits    []map[string]any
	components  []map[string]any
	regulators  []map[string]any
	edgesByType map[string][]map[string]any
}

// networkRows flattens circuits and regulations into UNWIND batches. Edges
// are grouped per relationship type because the type cannot be a Cypher
// parameter; constitutive records carry no edge.
func networkRows(runID string, circuits []*domain.Circuit, regs []domain.Regulation) network {
	rows := network{edgesByType: make(map[string][]map[string]any)}
	for _, circ := range circuits {
		rows.circuits = append(rows.circuits, map[string]any{"name": circ.Name, "run_id": runID})
		for _, comp := range circ.Components {
			rows.components = append(rows.components, map[string]any{
				"id":    comp.ID,
				"props": componentToMap(componentNode(comp)),
			})
		}
	}

	for _, reg := range regs {
		if reg.Kind == domain.RegConstitutive {
			continue
		}
		edge := map[string]any{
			"source": reg.Source,
			"target": reg.Target,
			"kind":   string(reg.Kind),
			"n":      reg.Params.N,
		}
		if reg.Kind.IsRepression() {
			edge["k"] = reg.Params.Kr
		} else {
			edge["k"] = reg.Params.Ka
		}
		if reg.Params.IsFloating {
			edge["floating"] = true
			rows.regulators = append(rows.regulators, map[string]any{"key": reg.Source})
		}
		rel := relType(reg.Kind)
		rows.edgesByType[rel] = append(rows.edgesByType[rel], edge)
	}
	return rows
}

// relType maps a regulation kind to its relationship type, restricted to
// safe Cypher identifier characters.
func relType(kind domain.RegKind) string {
	return sanitizeRelType(strings.ToUpper(string(kind)))
}

// sanitizeRelType ensures the relationship type is a valid Cypher
// identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "REGULATES"
	}
	return string(safe)
}
