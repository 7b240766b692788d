// Package graph maintains the contact mirror in the graph database and
// answers full-text, neighborhood and shortest-path queries against it.
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/config"
)

// Driver runs a single auto-committed Cypher statement.
type Driver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
	Close(ctx context.Context) error
}

// Neo4jDriver implements Driver over the official neo4j driver.
type Neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver connects and verifies connectivity.
func NewNeo4jDriver(ctx context.Context, cfg config.GraphConfig) (*Neo4jDriver, error) {
	d, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
		},
	)
	if err != nil {
		return nil, eris.Wrap(err, "graph: create driver")
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, eris.Wrapf(err, "graph: connect %s", cfg.URI)
	}
	zap.L().Info("graph: connected", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))
	return &Neo4jDriver{driver: d, database: cfg.Database}, nil
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	res, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, eris.Wrap(err, "graph: execute query")
	}
	return *res, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
