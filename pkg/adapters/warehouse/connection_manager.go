package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/logging"
)

// DefaultMaxOpenConns is the session pool size when none is configured.
const DefaultMaxOpenConns = 4

// ConnectionManager opens scoped warehouse sessions for one dialect and
// tracks them until they are closed.
type ConnectionManager struct {
	mu       sync.Mutex
	dialect  Dialect
	settings SessionSettings
	sessions map[uuid.UUID]*Session
	stopped  bool
	logger   *zap.Logger
}

// NewConnectionManager creates a connection manager with the given settings.
// A non-positive MaxOpenConns falls back to DefaultMaxOpenConns.
func NewConnectionManager(dialect Dialect, settings SessionSettings, logger *zap.Logger) *ConnectionManager {
	if settings.MaxOpenConns <= 0 {
		settings.MaxOpenConns = DefaultMaxOpenConns
	}
	if settings.StatementTimeout < 0 {
		settings.StatementTimeout = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConnectionManager{
		dialect:  dialect,
		settings: settings,
		sessions: make(map[uuid.UUID]*Session),
		logger:   logger.Named("warehouse").With(zap.String("dialect", dialect.Type())),
	}
}

// Dialect returns the dialect sessions are opened with.
func (m *ConnectionManager) Dialect() Dialect {
	return m.dialect
}

// Connect opens a session scoped to database and, if given, schema.
// The first physical connection is established before Connect returns, so a
// failed database or schema selection surfaces here as *apperrors.ConnectionError.
// The caller must Close the session; prefer WithSession.
func (m *ConnectionManager) Connect(ctx context.Context, database, schema string) (*Session, error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return nil, errors.New("connection manager is closed")
	}

	target := Target{Database: database, Schema: schema}
	connector, err := m.dialect.Connector(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s connector: %w", m.dialect.Type(), err)
	}

	db := sql.OpenDB(&sessionConnector{
		Connector:  connector,
		statements: m.dialect.SessionStatements(target, m.settings),
	})
	db.SetMaxOpenConns(m.settings.MaxOpenConns)
	db.SetMaxIdleConns(m.settings.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		m.logger.Error("failed to open session",
			zap.String("database", database),
			zap.String("schema", schema),
			zap.String("error", logging.SanitizeError(err)),
		)
		if errors.Is(err, apperrors.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to connect to %s account %s: %w", m.dialect.Type(), m.dialect.Account(), err)
	}

	session := &Session{
		id:       uuid.New(),
		target:   target,
		db:       db,
		dialect:  m.dialect,
		manager:  m,
		openedAt: time.Now(),
	}
	session.logger = m.logger.With(zap.String("session", session.id.String()))

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		db.Close()
		return nil, errors.New("connection manager is closed")
	}
	m.sessions[session.id] = session
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("opened session",
		zap.String("session", session.id.String()),
		zap.String("database", database),
		zap.String("schema", schema),
		zap.Int("max_open_conns", m.settings.MaxOpenConns),
		zap.Int("open_sessions", total),
	)
	return session, nil
}

// WithSession opens a session, passes it to fn and closes it on every exit
// path, including a panic in fn.
func (m *ConnectionManager) WithSession(ctx context.Context, database, schema string, fn func(*Session) error) error {
	session, err := m.Connect(ctx, database, schema)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			m.logger.Warn("failed to close session",
				zap.String("session", session.id.String()),
				zap.String("error", logging.SanitizeError(closeErr)),
			)
		}
	}()

	return fn(session)
}

// release forgets a closed session.
func (m *ConnectionManager) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Close closes every session still open.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.logger.Info("connection manager closed", zap.Int("closed_sessions", len(open)))
	return errors.Join(errs...)
}

// Stats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) Stats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := ConnectionStats{
		Dialect:      m.dialect.Type(),
		OpenSessions: len(m.sessions),
		MaxOpenConns: m.settings.MaxOpenConns,
	}
	for _, s := range m.sessions {
		stats.OpenConnections += s.db.Stats().OpenConnections
		if age := int(now.Sub(s.openedAt).Seconds()); age > stats.OldestSessionSeconds {
			stats.OldestSessionSeconds = age
		}
	}
	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	Dialect              string `json:"dialect"`
	OpenSessions         int    `json:"open_sessions"`
	OpenConnections      int    `json:"open_connections"`
	MaxOpenConns         int    `json:"max_open_conns"`
	OldestSessionSeconds int    `json:"oldest_session_seconds"`
}

// Session is a scoped connection to one database/schema. It is a bounded pool
// of physical connections that all carry the same session configuration, so
// it is safe for concurrent use: each caller checks out its own connection.
type Session struct {
	id       uuid.UUID
	target   Target
	db       *sql.DB
	dialect  Dialect
	manager  *ConnectionManager
	logger   *zap.Logger
	openedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session identifier used in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Target returns the database and schema the session is scoped to.
func (s *Session) Target() Target {
	return s.target
}

// Dialect returns the dialect the session was opened with.
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Close releases every physical connection of the session.
// This method is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
		s.manager.release(s.id)
		s.logger.Debug("closed session", zap.Duration("lifetime", time.Since(s.openedAt)))
	})
	return s.closeErr
}

// sessionConnector applies the session statements to every physical
// connection the pool opens.
type sessionConnector struct {
	driver.Connector
	statements []SessionStatement
}

func (c *sessionConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	for _, stmt := range c.statements {
		if err := execDirect(ctx, conn, stmt.SQL); err != nil {
			conn.Close()
			if stmt.Fail != nil {
				return nil, stmt.Fail(err)
			}
			return nil, fmt.Errorf("session setup failed on %q: %w", logging.SanitizeQuery(stmt.SQL), err)
		}
	}
	return conn, nil
}

// execDirect runs a statement without arguments on a raw driver connection.
func execDirect(ctx context.Context, conn driver.Conn, query string) error {
	if execer, ok := conn.(driver.ExecerContext); ok {
		_, err := execer.ExecContext(ctx, query, nil)
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}

	var (
		stmt driver.Stmt
		err  error
	)
	if preparer, ok := conn.(driver.ConnPrepareContext); ok {
		stmt, err = preparer.PrepareContext(ctx, query)
	} else {
		stmt, err = conn.Prepare(query)
	}
	if err != nil {
		return err
	}
	defer stmt.Close()

	if execer, ok := stmt.(driver.StmtExecContext); ok {
		_, err = execer.ExecContext(ctx, nil)
		return err
	}
	_, err = stmt.Exec(nil) //nolint:staticcheck // fallback for drivers without StmtExecContext
	return err
}
