package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"estate-assistant/internal/domain"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	dirPermissions         = 0o755
)

//go:embed migrations_postgres.sql
var postgresMigrations string

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type Opts struct {
	DSN    string
	Logger *slog.Logger
}

type Option func(*Opts)

func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Opts) { o.Logger = l }
}

// SQLStore persists profiles, interactions and leads in Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	now     func() time.Time
}

// NewPostgresStore connects to Postgres and applies the embedded migrations.
func NewPostgresStore(ctx context.Context, opts ...Option) (*SQLStore, error) {
	cfg := apply(opts)
	if cfg.DSN == "" {
		return nil, errors.New("repository: database DSN not set")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	return open(ctx, db, dialectPostgres, postgresMigrations, cfg.Logger)
}

// NewSQLiteStore opens the SQLite file at the DSN, creating its directory.
func NewSQLiteStore(ctx context.Context, opts ...Option) (*SQLStore, error) {
	cfg := apply(opts)
	if cfg.DSN == "" {
		return nil, errors.New("repository: database DSN not set")
	}
	if dir := filepath.Dir(cfg.DSN); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("repository: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)
	return open(ctx, db, dialectSQLite, sqliteMigrations, cfg.Logger)
}

func apply(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func open(ctx context.Context, db *sql.DB, d dialect, migrations string, logger *slog.Logger) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: run migrations: %w", err)
	}
	logger.Debug("repository: sql store ready", "dialect", d.String())
	return &SQLStore{db: db, dialect: d, logger: logger, now: time.Now}, nil
}

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (s *SQLStore) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) LoadProfile(ctx context.Context, visitorID string) (domain.UserProfile, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT profile FROM visitor_profiles WHERE visitor_id = ?`), visitorID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, false, nil
	}
	if err != nil {
		s.logger.Error("repository: LoadProfile query failed", "visitor_id", visitorID, "err", err)
		return domain.UserProfile{}, false, fmt.Errorf("repository: LoadProfile: %w", err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return domain.UserProfile{}, false, err
	}
	return p, true, nil
}

func (s *SQLStore) SaveProfile(ctx context.Context, p domain.UserProfile) error {
	if p.VisitorID == "" {
		return errors.New("repository: SaveProfile: visitor id is required")
	}
	raw, err := encode(p)
	if err != nil {
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO visitor_profiles (visitor_id, profile, lead_score, qualification_status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (visitor_id) DO UPDATE SET
			profile = excluded.profile,
			lead_score = excluded.lead_score,
			qualification_status = excluded.qualification_status,
			updated_at = excluded.updated_at`),
		p.VisitorID, raw, p.Summary.LeadScore, string(p.Summary.QualificationStatus), formatTime(s.now()))
	if err != nil {
		s.logger.Error("repository: SaveProfile failed", "visitor_id", p.VisitorID, "err", err)
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	s.logger.Debug("repository: profile saved", "visitor_id", p.VisitorID)
	return nil
}

// RecentInteractions returns the newest limit turns in chronological order.
func (s *SQLStore) RecentInteractions(ctx context.Context, visitorID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT sender, text, intent, entities, created_at
		FROM interactions WHERE visitor_id = ?
		ORDER BY id DESC LIMIT ?`), visitorID, limit)
	if err != nil {
		s.logger.Error("repository: RecentInteractions query failed", "visitor_id", visitorID, "err", err)
		return nil, fmt.Errorf("repository: RecentInteractions: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var sender, text, intent, entities, created string
		if err := rows.Scan(&sender, &text, &intent, &entities, &created); err != nil {
			return nil, fmt.Errorf("repository: RecentInteractions scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentInteractions parse time: %w", err)
		}
		ents, err := decodeEntities(entities)
		if err != nil {
			return nil, err
		}
		turns = append(turns, domain.Turn{
			Text:      text,
			Sender:    domain.Sender(sender),
			Timestamp: ts,
			Intent:    domain.Intent(intent),
			Entities:  ents,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: RecentInteractions rows: %w", err)
	}
	reverse(turns)
	s.logger.Debug("repository: interactions loaded", "visitor_id", visitorID, "count", len(turns))
	return turns, nil
}

func (s *SQLStore) AppendInteraction(ctx context.Context, visitorID string, t domain.Turn) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	entities := ""
	if len(t.Entities) > 0 {
		raw, err := encode(t.Entities)
		if err != nil {
			return fmt.Errorf("repository: AppendInteraction: %w", err)
		}
		entities = raw
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO interactions (visitor_id, sender, text, intent, entities, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		visitorID, string(t.Sender), t.Text, string(t.Intent), entities, formatTime(t.Timestamp))
	if err != nil {
		s.logger.Error("repository: AppendInteraction failed", "visitor_id", visitorID, "err", err)
		return fmt.Errorf("repository: AppendInteraction: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveLead(ctx context.Context, l domain.Lead) error {
	if l.ID == "" {
		return errors.New("repository: SaveLead: lead id is required")
	}
	raw, err := encode(l)
	if err != nil {
		return fmt.Errorf("repository: SaveLead: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO leads (id, session_id, visitor_id, name, email, phone, grade, priority, total,
			assigned_agent, status, created_at, next_follow_up, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.SessionID, l.VisitorID, l.Contact.Name, l.Contact.Email, l.Contact.Phone,
		string(l.Qualification.Grade), string(l.Qualification.Priority), l.Qualification.Total,
		l.AssignedAgent, l.Status, formatTime(l.CreatedAt), formatTime(l.NextFollowUp), raw)
	if err != nil {
		s.logger.Error("repository: SaveLead failed", "lead_id", l.ID, "err", err)
		return fmt.Errorf("repository: SaveLead: %w", err)
	}
	s.logger.Info("repository: lead saved", "lead_id", l.ID, "grade", l.Qualification.Grade)
	return nil
}

// LeadsForVisitor returns the visitor's leads, newest first.
func (s *SQLStore) LeadsForVisitor(ctx context.Context, visitorID string) ([]domain.Lead, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT payload FROM leads WHERE visitor_id = ? ORDER BY created_at DESC`), visitorID)
	if err != nil {
		return nil, fmt.Errorf("repository: LeadsForVisitor: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("repository: LeadsForVisitor scan: %w", err)
		}
		var l domain.Lead
		if err := decodeJSON(raw, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
