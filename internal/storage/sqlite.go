// Package storage keeps the query history in SQLite: one row per queried server,
// keyed by edition, host and port, with embedded schema migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/craftping/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

const serverColumns = `
	edition, host, port, ip, country_code, version, motd, last_error, protocol,
	players_online, players_max, latency_ms, online, count, first_seen, last_seen, last_online`

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer inserts a server or updates the existing row of the same edition, host and port.
// Status fields are only overwritten by online observations, so an offline query keeps
// the last known version, MOTD and player counts.
func (r *Repository) UpsertServer(ctx context.Context, s models.ServerRecord) error {
	query := `
	INSERT INTO servers (` + serverColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	ON CONFLICT(edition, host, port) DO UPDATE SET
		count = count + 1,
		last_seen = excluded.last_seen,
		online = excluded.online,
		last_error = excluded.last_error,

		-- Keep the previous address and country when unknown
		ip           = CASE WHEN excluded.ip != '' THEN excluded.ip ELSE servers.ip END,
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END,

		-- Status fields only from online observations
		version        = CASE WHEN excluded.online THEN excluded.version ELSE servers.version END,
		motd           = CASE WHEN excluded.online THEN excluded.motd ELSE servers.motd END,
		protocol       = CASE WHEN excluded.online THEN excluded.protocol ELSE servers.protocol END,
		players_online = CASE WHEN excluded.online THEN excluded.players_online ELSE 0 END,
		players_max    = CASE WHEN excluded.online THEN excluded.players_max ELSE servers.players_max END,
		latency_ms     = CASE WHEN excluded.online THEN excluded.latency_ms ELSE servers.latency_ms END,
		last_online    = CASE WHEN excluded.online THEN excluded.last_online ELSE servers.last_online END;
	`

	_, err := r.db.ExecContext(ctx, query,
		s.Edition, s.Host, s.Port, s.IP, s.CountryCode, s.Version, s.MOTD, s.LastError, s.Protocol,
		s.PlayersOnline, s.PlayersMax, s.LatencyMs, s.Online, s.FirstSeen, s.LastSeen, nullTime(s.LastOnline),
	)

	return err
}

// GetServers retrieves servers sorted by the last seen timestamp in descending order.
// An empty edition selects every edition.
func (r *Repository) GetServers(ctx context.Context, edition models.Edition) ([]models.ServerRecord, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE 1=1`
	var args []any

	if edition != "" {
		query += ` AND edition = ?`
		args = append(args, edition)
	}
	query += ` ORDER BY last_seen DESC`

	return r.list(ctx, query, args...)
}

// GetServer retrieves a single server, nil when it was never queried.
func (r *Repository) GetServer(ctx context.Context, edition models.Edition, host string, port int) (*models.ServerRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE edition = ? AND host = ? AND port = ?`,
		edition, host, port)

	s, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteServer removes a server and reports whether a row existed.
func (r *Repository) DeleteServer(ctx context.Context, edition models.Edition, host string, port int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM servers WHERE edition = ? AND host = ? AND port = ?`,
		edition, host, port)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteOffline removes servers that have not been online since before.
// Servers that were never online count from their first observation.
func (r *Repository) DeleteOffline(ctx context.Context, edition models.Edition, before time.Time) (int64, error) {
	query := `DELETE FROM servers WHERE COALESCE(last_online, first_seen) < ?`
	args := []any{before.UTC()}

	if edition != "" {
		query += ` AND edition = ?`
		args = append(args, edition)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.ServerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	servers := []models.ServerRecord{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (models.ServerRecord, error) {
	var (
		s          models.ServerRecord
		lastOnline sql.NullTime
	)

	err := row.Scan(
		&s.Edition, &s.Host, &s.Port, &s.IP, &s.CountryCode, &s.Version, &s.MOTD, &s.LastError, &s.Protocol,
		&s.PlayersOnline, &s.PlayersMax, &s.LatencyMs, &s.Online, &s.Count, &s.FirstSeen, &s.LastSeen, &lastOnline,
	)
	if lastOnline.Valid {
		s.LastOnline = lastOnline.Time
	}

	return s, err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
