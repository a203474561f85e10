package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/util"
)

const createSecurityEventsTable = `
CREATE TABLE IF NOT EXISTS security_events (
    event_bucket int,
    event_date   text,
    business_id  text,
    event_time   timestamp,
    event_id     uuid,
    event_type   text,
    severity     text,
    staff_id     text,
    admin_id     text,
    ip_address   text,
    details      text,
    PRIMARY KEY ((event_bucket, event_date), business_id, event_time, event_id)
) WITH CLUSTERING ORDER BY (business_id ASC, event_time DESC, event_id ASC)
  AND default_time_to_live = %d`

type ScyllaClient struct {
	Session *gocql.Session
	config  config.ScyllaConfig
}

// NewScyllaClient bootstraps the keyspace with a keyspace-less session, then
// opens the working session and ensures the timeline table exists.
func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	if err := ensureKeyspace(scyllaConfig); err != nil {
		return nil, err
	}

	cluster := newCluster(scyllaConfig)
	cluster.Keyspace = scyllaConfig.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  scyllaConfig,
	}

	ttl := int(cfg.Audit.Retention.Seconds())
	if err := session.Query(fmt.Sprintf(createSecurityEventsTable, ttl)).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create security_events table: %w", err)
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func newCluster(scyllaConfig config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 500
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.CAFile != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 scyllaConfig.CAFile,
			CertPath:               scyllaConfig.CertFile,
			KeyPath:                scyllaConfig.KeyFile,
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}
	return cluster
}

func ensureKeyspace(scyllaConfig config.ScyllaConfig) error {
	session, err := newCluster(scyllaConfig).CreateSession()
	if err != nil {
		return fmt.Errorf("failed to create scylla bootstrap session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		scyllaConfig.Keyspace, max(scyllaConfig.ReplicationFactor, 1),
	)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", scyllaConfig.Keyspace, err)
	}
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

// ExecuteWithRetry retries with a linear backoff and gives up early when ctx is done.
func (s *ScyllaClient) ExecuteWithRetry(ctx context.Context, query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		lastErr = query.WithContext(ctx).Exec()
		if lastErr == nil {
			return nil
		}
		if i == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return lastErr
}
