package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

//go:embed schema.sql
var schemaSQL string

const (
	progressTable  = "player_progress"
	inventoryTable = "inventory_entries"
)

var (
	psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	progressColumns = []string{"player_id", "xp", "click_count", "rank_index", "version"}
	entryColumns    = []string{"id", "player_id", "loot_name", "icon_ref", "rarity", "source_rank", "collected_at", "is_equipped"}
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists progress and inventories in PostgreSQL.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table *rank.Table
	book  *crafting.Book
	opts  storeOptions
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, verifies the connection and applies
// the schema.
func NewPostgresStore(ctx context.Context, dsn string, table *rank.Table, book *crafting.Book, opts ...Option) (*PostgresStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, table: table, book: book, opts: o}
	if err := s.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetProgress(ctx context.Context, playerID string) (p model.PlayerProgress, err error) {
	defer observe("get_progress", time.Now(), &err)
	query, args, err := selectProgressSQL(playerID, false)
	if err != nil {
		return model.PlayerProgress{}, err
	}
	p, err = scanProgress(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlayerProgress{}, ErrNotFound
	}
	if err != nil {
		return model.PlayerProgress{}, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProgress(ctx context.Context, p model.PlayerProgress) (v int64, err error) {
	defer observe("upsert_progress", time.Now(), &err)
	if p.PlayerID == "" {
		return 0, ErrEmptyPlayerID
	}

	var (
		query string
		args  []any
	)
	if p.Version == 0 {
		query, args, err = insertProgressSQL(p, s.opts.now())
	} else {
		query, args, err = updateProgressSQL(p, s.opts.now())
	}
	if err != nil {
		return 0, err
	}

	err = s.pool.QueryRow(ctx, query, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to upsert progress: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListInventory(ctx context.Context, playerID string, limit int) (out []model.InventoryEntry, err error) {
	defer observe("list_inventory", time.Now(), &err)
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	query, args, err := listInventorySQL(playerID, limit)
	if err != nil {
		return nil, err
	}
	out, err = queryEntries(ctx, s.pool, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertDrop(ctx context.Context, d model.Drop) (e model.InventoryEntry, err error) {
	defer observe("insert_drop", time.Now(), &err)
	if d.PlayerID == "" {
		return model.InventoryEntry{}, ErrEmptyPlayerID
	}
	e = d.Entry(s.opts.newID())
	if err := insertEntry(ctx, s.pool, e); err != nil {
		return model.InventoryEntry{}, fmt.Errorf("failed to insert drop: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) CraftItems(ctx context.Context, playerID string, entryIDs []string) (res model.CraftResult, err error) {
	defer observe("craft_items", time.Now(), &err)
	ids := crafting.UniqueIDs(entryIDs)
	if len(ids) == 0 || playerID == "" {
		_, err := s.book.Check(ids, playerID != "", entryIndex(nil))
		return model.CraftResult{}, err
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockProgress(ctx, tx, playerID)
		if err != nil {
			return err
		}

		query, args, err := selectEntriesForUpdateSQL(playerID, ids)
		if err != nil {
			return err
		}
		owned, err := queryEntries(ctx, tx, query, args)
		if err != nil {
			return fmt.Errorf("failed to lock entries: %w", err)
		}

		plan, err := s.book.Check(ids, true, entryIndex(owned))
		if err != nil {
			return err
		}

		p, err = grant(s.table, p, plan.Recipe.XPReward)
		if err != nil {
			return err
		}

		consumed := plan.InputIDs()
		query, args, err = deleteEntriesSQL(playerID, consumed)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to consume entries: %w", err)
		}
		if int(tag.RowsAffected()) != len(consumed) {
			return fmt.Errorf("consumed %d of %d entries: %w", tag.RowsAffected(), len(consumed), ErrVersionConflict)
		}

		result := model.NewDrop(playerID, plan.Result, model.CraftSource, s.opts.now()).Entry(s.opts.newID())
		if err := insertEntry(ctx, tx, result); err != nil {
			return fmt.Errorf("failed to create craft result: %w", err)
		}

		if p, err = writeProgress(ctx, tx, p, s.opts.now()); err != nil {
			return err
		}

		res = model.CraftResult{
			Result:      result,
			ConsumedIDs: consumed,
			XPAwarded:   plan.Recipe.XPReward,
			Progress:    p,
		}
		return nil
	})
	if err != nil {
		return model.CraftResult{}, err
	}
	return res, nil
}

func (s *PostgresStore) IncrementXP(ctx context.Context, playerID string, amount int64) (p model.PlayerProgress, err error) {
	defer observe("increment_xp", time.Now(), &err)
	if playerID == "" {
		return model.PlayerProgress{}, ErrEmptyPlayerID
	}
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := lockProgress(ctx, tx, playerID)
		if err != nil {
			return err
		}
		next, err := grant(s.table, current, amount)
		if err != nil {
			return err
		}
		p, err = writeProgress(ctx, tx, next, s.opts.now())
		return err
	})
	if err != nil {
		return model.PlayerProgress{}, err
	}
	return p, nil
}

func (s *PostgresStore) TopProgress(ctx context.Context, limit int) (out []model.PlayerProgress, err error) {
	defer observe("top_progress", time.Now(), &err)
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	query, args, err := topProgressSQL(limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountPlayers(ctx context.Context) (n int, err error) {
	defer observe("count_players", time.Now(), &err)
	query, args, err := psql.Select("COUNT(*)").From(progressTable).ToSql()
	if err != nil {
		return 0, err
	}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockProgress makes sure the player's row exists and locks it.
func lockProgress(ctx context.Context, tx pgx.Tx, playerID string) (model.PlayerProgress, error) {
	query, args, err := psql.Insert(progressTable).
		Columns("player_id").
		Values(playerID).
		Suffix("ON CONFLICT (player_id) DO NOTHING").
		ToSql()
	if err != nil {
		return model.PlayerProgress{}, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return model.PlayerProgress{}, fmt.Errorf("failed to ensure progress row: %w", err)
	}

	query, args, err = selectProgressSQL(playerID, true)
	if err != nil {
		return model.PlayerProgress{}, err
	}
	p, err := scanProgress(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return model.PlayerProgress{}, fmt.Errorf("failed to lock progress: %w", err)
	}
	return p, nil
}

// writeProgress stores a locked row unconditionally and bumps its version.
func writeProgress(ctx context.Context, q querier, p model.PlayerProgress, now time.Time) (model.PlayerProgress, error) {
	query, args, err := psql.Update(progressTable).
		Set("xp", p.XP).
		Set("click_count", p.ClickCount).
		Set("rank_index", p.RankIndex).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"player_id": p.PlayerID}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return p, err
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&p.Version); err != nil {
		return p, fmt.Errorf("failed to write progress: %w", err)
	}
	return p, nil
}

func insertEntry(ctx context.Context, q querier, e model.InventoryEntry) error {
	query, args, err := psql.Insert(inventoryTable).
		Columns(entryColumns...).
		Values(e.ID, e.PlayerID, e.LootName, e.IconRef, int16(e.Rarity), e.SourceRank, e.CollectedAt, e.Equipped).
		ToSql()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

func queryEntries(ctx context.Context, q querier, query string, args []any) ([]model.InventoryEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InventoryEntry
	for rows.Next() {
		var (
			e      model.InventoryEntry
			rarity int16
		)
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.LootName, &e.IconRef, &rarity, &e.SourceRank, &e.CollectedAt, &e.Equipped); err != nil {
			return nil, err
		}
		e.Rarity = loot.Rarity(rarity)
		e.CollectedAt = e.CollectedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanProgress(row pgx.Row) (model.PlayerProgress, error) {
	var p model.PlayerProgress
	err := row.Scan(&p.PlayerID, &p.XP, &p.ClickCount, &p.RankIndex, &p.Version)
	return p, err
}

func selectProgressSQL(playerID string, forUpdate bool) (string, []any, error) {
	b := psql.Select(progressColumns...).From(progressTable).Where(squirrel.Eq{"player_id": playerID})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	return b.ToSql()
}

func insertProgressSQL(p model.PlayerProgress, now time.Time) (string, []any, error) {
	return psql.Insert(progressTable).
		Columns("player_id", "xp", "click_count", "rank_index", "version", "updated_at").
		Values(p.PlayerID, p.XP, p.ClickCount, p.RankIndex, 1, now).
		Suffix("ON CONFLICT (player_id) DO NOTHING RETURNING version").
		ToSql()
}

func updateProgressSQL(p model.PlayerProgress, now time.Time) (string, []any, error) {
	return psql.Update(progressTable).
		Set("xp", p.XP).
		Set("click_count", p.ClickCount).
		Set("rank_index", p.RankIndex).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"player_id": p.PlayerID, "version": p.Version}).
		Suffix("RETURNING version").
		ToSql()
}

func listInventorySQL(playerID string, limit int) (string, []any, error) {
	return psql.Select(entryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"player_id": playerID}).
		OrderBy("collected_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
}

func selectEntriesForUpdateSQL(playerID string, ids []string) (string, []any, error) {
	return psql.Select(entryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"player_id": playerID, "id": ids}).
		Suffix("FOR UPDATE").
		ToSql()
}

func deleteEntriesSQL(playerID string, ids []string) (string, []any, error) {
	return psql.Delete(inventoryTable).
		Where(squirrel.Eq{"player_id": playerID, "id": ids}).
		ToSql()
}

func topProgressSQL(limit int) (string, []any, error) {
	return psql.Select(progressColumns...).
		From(progressTable).
		OrderBy("xp DESC", "player_id ASC").
		Limit(uint64(limit)).
		ToSql()
}
