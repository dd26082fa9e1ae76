package roster

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/shared/errors"
)

// LegacySource reads the doctor roster straight from the legacy HIS SQL
// Server. Some sites have not migrated the roster tables to the gateway
// yet; for those deployments the roster domain is fetched here while every
// other snapshot still comes from the gateway.
type LegacySource struct {
	db    *sql.DB
	table string
	log   zerolog.Logger
}

// NewLegacySource connects to the legacy HIS database.
func NewLegacySource(cfg config.RosterConfig, log zerolog.Logger) (*LegacySource, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s;encrypt=true;TrustServerCertificate=true",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy HIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return &LegacySource{
		db:    db,
		table: cfg.Table,
		log:   log,
	}, nil
}

// FetchRoster reads today's active doctors.
func (s *LegacySource) FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	query := fmt.Sprintf(`
		SELECT DoctorID, FullName, Department, RoomNumber
		FROM %s
		WHERE IsActive = 1
		ORDER BY FullName ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Upstream(fmt.Errorf("legacy roster query: %w", err))
	}
	defer rows.Close()

	var roster []queue.DoctorRosterEntry
	for rows.Next() {
		var entry queue.DoctorRosterEntry
		var department, room sql.NullString

		if err := rows.Scan(&entry.DoctorID, &entry.Name, &department, &room); err != nil {
			return nil, errors.Upstream(fmt.Errorf("legacy roster scan: %w", err))
		}
		if department.Valid {
			entry.Department = department.String
		}
		if room.Valid {
			entry.RoomNumber = room.String
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Upstream(fmt.Errorf("legacy roster rows: %w", err))
	}
	return roster, nil
}

// Health checks legacy database connectivity.
func (s *LegacySource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *LegacySource) Close() error {
	return s.db.Close()
}
