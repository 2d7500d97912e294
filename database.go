package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var errSessionClosed = errors.New("session already finished")

type Database struct {
	db      *gorm.DB
	metrics *Metrics
}

func NewDatabase(cfg DatabaseConfig, metrics *Metrics) (*Database, error) {
	logMode := logger.Silent
	if cfg.LogSQL {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// Single connection: concurrent writers queue here instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	database := &Database{db: db, metrics: metrics}

	if err := database.checkForeignKeys(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	// Auto migrate tables
	if err := db.AutoMigrate(allModels...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	// Create additional indexes that are not covered by GORM tags
	if err := database.createAdditionalIndexes(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return database, nil
}

// sqliteDSN turns on foreign key enforcement for every pooled connection.
func sqliteDSN(cfg DatabaseConfig) string {
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
		cfg.Path, sep, cfg.BusyTimeout.Milliseconds())
}

func (d *Database) checkForeignKeys() error {
	var enabled int
	if err := d.db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		return fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if enabled != 1 {
		return errors.New("foreign key enforcement is not enabled on the connection")
	}
	return nil
}

// createAdditionalIndexes creates indexes that are not easily covered by GORM tags
func (d *Database) createAdditionalIndexes() error {
	// Names are normalized to uppercase before writing; the NOCASE index still
	// rejects a differently-cased duplicate that reaches the store.
	if err := d.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_stocks_name_nocase ON stocks(name COLLATE NOCASE)").Error; err != nil {
		return fmt.Errorf("failed to create unique index: %w", err)
	}

	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// SessionState tracks a unit of work from staging to its terminal outcome.
type SessionState int

const (
	SessionPending SessionState = iota
	SessionStaged
	SessionCommitted
	SessionRolledBack
)

func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionStaged:
		return "staged"
	case SessionCommitted:
		return "committed"
	case SessionRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

type stagedChange struct {
	kind  changeKind
	value interface{}
}

// Session is one unit of work against the store. Changes are staged in memory
// and only reach the database, all together, on Commit. A Session belongs to a
// single operation call and must not be shared between goroutines.
type Session struct {
	db        *gorm.DB
	ctx       context.Context
	operation string
	metrics   *Metrics
	pending   []stagedChange
	state     SessionState
}

// Open starts a unit of work. operation names it in logs and metrics.
func (d *Database) Open(ctx context.Context, operation string) *Session {
	return &Session{
		db:        d.db,
		ctx:       ctx,
		operation: operation,
		metrics:   d.metrics,
		state:     SessionPending,
	}
}

func (s *Session) State() SessionState {
	return s.state
}

// Query returns a handle for reads outside the pending changes.
func (s *Session) Query() *gorm.DB {
	return s.db.WithContext(s.ctx)
}

// Add stages an insert of value, a pointer to an entity.
func (s *Session) Add(value interface{}) {
	s.stage(changeInsert, value)
}

// Save stages a full update of value, a pointer to a loaded entity.
func (s *Session) Save(value interface{}) {
	s.stage(changeUpdate, value)
}

// Delete stages the removal of value, a pointer to a loaded entity.
func (s *Session) Delete(value interface{}) {
	s.stage(changeDelete, value)
}

func (s *Session) stage(kind changeKind, value interface{}) {
	if s.state == SessionCommitted || s.state == SessionRolledBack {
		panic(fmt.Sprintf("%s: cannot stage on a %s session", s.operation, s.state))
	}
	s.pending = append(s.pending, stagedChange{kind: kind, value: value})
	s.state = SessionStaged
}

// Commit applies every staged change in one transaction. On failure nothing
// persists, inserted entities get their ids cleared and the returned error is a
// *PersistenceError.
func (s *Session) Commit() error {
	if s.state == SessionCommitted || s.state == SessionRolledBack {
		return &PersistenceError{Op: s.operation, Err: errSessionClosed}
	}

	err := s.db.WithContext(s.ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range s.pending {
			if err := change.apply(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.discard()
		s.metrics.observeCommit(s.operation, SessionRolledBack)
		return &PersistenceError{Op: s.operation, Err: translateStoreError(err)}
	}

	s.pending = nil
	s.state = SessionCommitted
	s.metrics.observeCommit(s.operation, SessionCommitted)
	return nil
}

// Rollback drops whatever is staged. It is a no-op once the session finished.
// Only sessions that staged changes count as rolled back transactions.
func (s *Session) Rollback() {
	if s.state == SessionCommitted || s.state == SessionRolledBack {
		return
	}
	staged := s.state == SessionStaged
	s.discard()
	if staged {
		s.metrics.observeCommit(s.operation, SessionRolledBack)
	}
}

func (s *Session) discard() {
	for _, change := range s.pending {
		if change.kind == changeInsert {
			clearID(change.value)
		}
	}
	s.pending = nil
	s.state = SessionRolledBack
}

func (c stagedChange) apply(tx *gorm.DB) error {
	switch c.kind {
	case changeInsert:
		return tx.Omit(clause.Associations).Create(c.value).Error
	case changeUpdate:
		result := tx.Model(c.value).Select("*").Omit(clause.Associations).Updates(c.value)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: nothing to update", ErrNotFound)
		}
		return nil
	case changeDelete:
		result := tx.Delete(c.value)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: nothing to delete", ErrNotFound)
		}
		return nil
	default:
		return fmt.Errorf("unknown change kind %d", c.kind)
	}
}

func clearID(value interface{}) {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	if id := v.FieldByName("ID"); id.IsValid() && id.CanSet() && id.Kind() == reflect.Uint {
		id.SetUint(0)
	}
}

// Scan returns the records of type T matching scopes. The sequence is lazy and
// each range re-runs the query. Rows come back in the order a scope asks for,
// unspecified otherwise.
func Scan[T any](s *Session, scopes ...func(*gorm.DB) *gorm.DB) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := s.Query().Model(new(T)).Scopes(scopes...).Rows()
		if err != nil {
			yield(zero, &PersistenceError{Op: "query", Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var record T
			if err := s.db.ScanRows(rows, &record); err != nil {
				yield(zero, &PersistenceError{Op: "query", Err: err})
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, &PersistenceError{Op: "query", Err: err})
		}
	}
}

// Collect drains seq. The slice is empty, not nil, when nothing matched.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	records := make([]T, 0)
	for record, err := range seq {
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// findByID loads one record or reports ErrNotFound.
func findByID[T any](s *Session, id uint) (*T, error) {
	var record T
	err := s.Query().First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	return &record, nil
}

// exists reports whether any record of type T matches scopes.
func exists[T any](s *Session, scopes ...func(*gorm.DB) *gorm.DB) (bool, error) {
	var count int64
	if err := s.Query().Model(new(T)).Scopes(scopes...).Count(&count).Error; err != nil {
		return false, &PersistenceError{Op: "query", Err: err}
	}
	return count > 0, nil
}

func orderBy(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column)
	}
}

func where(query string, args ...interface{}) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}
