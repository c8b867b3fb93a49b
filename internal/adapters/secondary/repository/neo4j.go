package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jGraph porte la relation FOLLOWS, source du fan-out.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraph(driver neo4j.DriverWithContext) *Neo4jGraph {
	return &Neo4jGraph{driver: driver}
}

// EnsureSchema crée les index pour que les lookups par ID soient O(1)
func (r *Neo4jGraph) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: ensure schema: %w", err)
	}
	return nil
}

func (r *Neo4jGraph) CreateRelation(ctx context.Context, actorID, targetID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// MERGE : suivre deux fois ne crée qu'une flèche
		query := `
			MERGE (a:User {id: $actorId})
			MERGE (b:User {id: $targetId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"actorId":  actorID,
			"targetId": targetID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: follow: %w", err)
	}
	return nil
}

func (r *Neo4jGraph) DeleteRelation(ctx context.Context, actorID, targetID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {id: $actorId})-[r:FOLLOWS]->(b:User {id: $targetId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{"actorId": actorID, "targetId": targetID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: unfollow: %w", err)
	}
	return nil
}

// StreamFollowersIDs : lecture streamée pour le fan-out, par paquets de batchSize
func (r *Neo4jGraph) StreamFollowersIDs(ctx context.Context, userID string, batchSize int, yield func([]string) error) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Pas d'ExecuteRead : on veut consommer le curseur au fil de l'eau
	query := `MATCH (u:User {id: $userId})<-[:FOLLOWS]-(f:User) RETURN f.id AS followerId`

	res, err := session.Run(ctx, query, map[string]any{"userId": userID})
	if err != nil {
		return fmt.Errorf("neo4j: stream followers: %w", err)
	}

	batch := make([]string, 0, batchSize)
	for res.Next(ctx) {
		id, ok := res.Record().Get("followerId")
		if !ok {
			continue
		}
		s, ok := id.(string)
		if !ok {
			continue
		}
		batch = append(batch, s)

		if len(batch) >= batchSize {
			if err := yield(batch); err != nil {
				return err
			}
			batch = make([]string, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := yield(batch); err != nil {
			return err
		}
	}
	return res.Err()
}
