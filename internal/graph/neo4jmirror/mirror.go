// Package neo4jmirror exports a validated knowledge graph into Neo4j for
// visualization. It is a secondary, disposable mirror: never the graph's
// storage layout, never load-bearing for the pipeline, and safe to skip
// entirely (the graph artifact on disk remains authoritative).
package neo4jmirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/strategos-engine/internal/errors"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

// Mirror wraps a Neo4j driver used only to push a copy of a validated graph.
type Mirror struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// New connects to uri and verifies connectivity. Mirroring is opt-in at the
// config layer, so a connection failure here should not
// be treated as fatal by callers — log and skip the mirror step.
func New(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Mirror, error) {
	if uri == "" {
		return nil, errors.ConfigError("neo4j mirror uri is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""),
		func(cfg *neo4j.Config) {
			cfg.MaxConnectionPoolSize = 10
			cfg.ConnectionAcquisitionTimeout = 30 * time.Second
			cfg.SocketConnectTimeout = 5 * time.Second
		})
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to create neo4j mirror driver")
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.DatabaseError(err, fmt.Sprintf("failed to connect to neo4j mirror at %s", uri))
	}

	return &Mirror{driver: driver, logger: logger.With("component", "neo4jmirror"), database: "neo4j"}, nil
}

// Close releases the driver.
func (m *Mirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// Export writes every node and edge of kg into Neo4j under a fresh
// :Project{id} namespace, replacing any prior mirror of the same project.
// A failed node write aborts the export and returns an error; a failed edge
// write is logged and skipped.
func (m *Mirror) Export(ctx context.Context, projectID string, kg *model.KnowledgeGraph) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if _, err := tx.Run(ctx, `
			MATCH (n:MirrorNode {projectId: $projectId})
			DETACH DELETE n
		`, map[string]interface{}{"projectId": projectID}); err != nil {
			return nil, err
		}

		for _, n := range kg.Nodes {
			score := 0.0
			if n.ConfidenceScore != nil {
				score = *n.ConfidenceScore
			}
			if _, err := tx.Run(ctx, `
				CREATE (n:MirrorNode {
					projectId: $projectId, id: $id, label: $label, type: $type,
					parent: $parent, confidence: $confidence, confidenceScore: $score
				})
			`, map[string]interface{}{
				"projectId": projectID, "id": n.ID, "label": n.Label, "type": string(n.Type),
				"parent": n.Parent, "confidence": string(n.Confidence), "score": score,
			}); err != nil {
				return nil, errors.DatabaseError(err, fmt.Sprintf("failed to mirror node %s", n.ID))
			}
		}

		for _, e := range kg.Edges {
			if _, err := tx.Run(ctx, `
				MATCH (a:MirrorNode {projectId: $projectId, id: $source})
				MATCH (b:MirrorNode {projectId: $projectId, id: $target})
				CREATE (a)-[r:MIRROR_EDGE {type: $type, label: $label}]->(b)
			`, map[string]interface{}{
				"projectId": projectID, "source": e.Source, "target": e.Target,
				"type": string(e.Type), "label": e.Label,
			}); err != nil {
				m.logger.Warn("failed to mirror edge, skipping", "source", e.Source, "target", e.Target, "error", err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return errors.DatabaseError(err, "neo4j mirror export failed")
	}

	m.logger.Info("graph mirrored to neo4j", "projectId", projectID, "nodes", len(kg.Nodes), "edges", len(kg.Edges))
	return nil
}
