package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kuji-store/migrations"
	"kuji-store/models"
)

// PostgresConfig holds connection pool settings for the Postgres store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Postgres implements Store on a pgx connection pool. Per-campaign
// serialization comes from locking the campaign row with SELECT ... FOR
// UPDATE at the start of every Update transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies the embedded schema. The DDL is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrations.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the pool, used by the health endpoint.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) View(ctx context.Context, campaignID string, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&pgTx{ctx: ctx, tx: tx, campaignID: campaignID})
}

func (s *Postgres) Update(ctx context.Context, campaignID string, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM campaigns WHERE id = $1 FOR UPDATE`, campaignID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrCampaignNotFound
		}
		return fmt.Errorf("lock campaign: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx, campaignID: campaignID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Postgres) CampaignsWithLiveEntries(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT campaign_id FROM queue_entries WHERE status IN ('waiting', 'active')`)
	if err != nil {
		return nil, fmt.Errorf("list live campaigns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Postgres) Close() {
	s.pool.Close()
}

type pgTx struct {
	ctx        context.Context
	tx         pgx.Tx
	campaignID string
}

func (t *pgTx) Campaign() (*models.Campaign, error) {
	var (
		c     models.Campaign
		price string
	)
	err := t.tx.QueryRow(t.ctx,
		`SELECT id, title, total_tickets, sold_tickets, unit_price::text, status, created_at
		 FROM campaigns WHERE id = $1`, t.campaignID).
		Scan(&c.ID, &c.Title, &c.TotalTickets, &c.SoldTickets, &price, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse unit price: %w", err)
	}
	return &c, nil
}

func (t *pgTx) UpdateCampaign(soldTickets int, status models.CampaignStatus) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE campaigns SET sold_tickets = $2, status = $3 WHERE id = $1`,
		t.campaignID, soldTickets, status)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCampaignNotFound
	}
	return nil
}

func (t *pgTx) Variants() ([]models.VariantStock, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT v.id, v.campaign_id, v.tier, v.rarity, v.weight, v.stock, v.is_last_prize,
		        v.stock - COUNT(a.id) AS remaining
		 FROM prize_variants v
		 LEFT JOIN ticket_allocations a ON a.variant_id = v.id
		 WHERE v.campaign_id = $1
		 GROUP BY v.id, v.campaign_id, v.tier, v.rarity, v.weight, v.stock, v.is_last_prize
		 ORDER BY v.rarity, v.id`, t.campaignID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []models.VariantStock
	for rows.Next() {
		var v models.VariantStock
		if err := rows.Scan(&v.ID, &v.CampaignID, &v.Tier, &v.Rarity, &v.Weight,
			&v.Stock, &v.IsLastPrize, &v.Remaining); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *pgTx) DiscountTiers() ([]models.DiscountTier, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT id, campaign_id, type, draw_count, price::text, label, is_active
		 FROM discount_tiers WHERE campaign_id = $1 ORDER BY draw_count DESC`, t.campaignID)
	if err != nil {
		return nil, fmt.Errorf("list discount tiers: %w", err)
	}
	defer rows.Close()

	var out []models.DiscountTier
	for rows.Next() {
		var (
			d     models.DiscountTier
			price string
		)
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Type, &d.DrawCount, &price, &d.Label, &d.IsActive); err != nil {
			return nil, err
		}
		if d.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse tier price: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const entryColumns = `id, campaign_id, user_id, position, status, joined_at, activated_at, expires_at, last_heartbeat`

func scanEntry(row pgx.Row) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := row.Scan(&e.ID, &e.CampaignID, &e.UserID, &e.Position, &e.Status,
		&e.JoinedAt, &e.ActivatedAt, &e.ExpiresAt, &e.LastHeartbeat)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) LiveEntries() ([]models.QueueEntry, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE campaign_id = $1 AND status IN ('waiting', 'active')
		 ORDER BY position`, t.campaignID)
	if err != nil {
		return nil, fmt.Errorf("list live entries: %w", err)
	}
	defer rows.Close()

	var out []models.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (t *pgTx) LiveEntryByUser(userID string) (*models.QueueEntry, error) {
	row := t.tx.QueryRow(t.ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE campaign_id = $1 AND user_id = $2 AND status IN ('waiting', 'active')
		 LIMIT 1`, t.campaignID, userID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get live entry: %w", err)
	}
	return e, nil
}

func (t *pgTx) NextPosition() (int64, error) {
	var next int64
	err := t.tx.QueryRow(t.ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM queue_entries WHERE campaign_id = $1`,
		t.campaignID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return next, nil
}

func (t *pgTx) InsertEntry(e *models.QueueEntry) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO queue_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.CampaignID, e.UserID, e.Position, e.Status,
		e.JoinedAt, e.ActivatedAt, e.ExpiresAt, e.LastHeartbeat)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateEntry(e *models.QueueEntry) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE queue_entries
		 SET status = $2, activated_at = $3, expires_at = $4, last_heartbeat = $5
		 WHERE id = $1`,
		e.ID, e.Status, e.ActivatedAt, e.ExpiresAt, e.LastHeartbeat)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEntryNotFound
	}
	return nil
}

func (t *pgTx) AllocatedNumbers() (map[int]bool, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT ticket_number FROM ticket_allocations WHERE campaign_id = $1`, t.campaignID)
	if err != nil {
		return nil, fmt.Errorf("list allocated numbers: %w", err)
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, rows.Err()
}

func (t *pgTx) InsertAllocations(rows []models.TicketAllocation) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO ticket_allocations (id, campaign_id, variant_id, user_id, ticket_number, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, r.CampaignID, r.VariantID, r.UserID, r.TicketNumber, r.CreatedAt)
	}
	err := t.tx.SendBatch(t.ctx, batch).Close()
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrTicketAlreadyAllocated
		}
		return fmt.Errorf("insert allocations: %w", err)
	}
	return nil
}

func (t *pgTx) RecentRarities(userID string, n int) ([]int, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT v.rarity
		 FROM ticket_allocations a
		 JOIN prize_variants v ON v.id = a.variant_id
		 WHERE a.campaign_id = $1 AND a.user_id = $2
		 ORDER BY a.created_at DESC, a.ticket_number DESC
		 LIMIT $3`, t.campaignID, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent rarities: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) WalletBalance(userID string) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(t.ctx,
		`SELECT balance::text FROM wallets WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, models.ErrWalletNotFound
		}
		return decimal.Zero, fmt.Errorf("get wallet: %w", err)
	}
	return decimal.NewFromString(raw)
}

func (t *pgTx) DebitWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return t.adjustWallet(userID, `UPDATE wallets SET balance = balance - $2 WHERE user_id = $1 RETURNING balance::text`, amount)
}

func (t *pgTx) CreditWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return t.adjustWallet(userID, `UPDATE wallets SET balance = balance + $2 WHERE user_id = $1 RETURNING balance::text`, amount)
}

func (t *pgTx) adjustWallet(userID, query string, amount decimal.Decimal) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(t.ctx, query, userID, amount.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, models.ErrWalletNotFound
		}
		return decimal.Zero, fmt.Errorf("adjust wallet: %w", err)
	}
	return decimal.NewFromString(raw)
}

func (t *pgTx) AppendLedger(entry *models.LedgerEntry) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO ledger_entries (id, user_id, campaign_id, kind, amount, ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.CampaignID, entry.Kind,
		entry.Amount.String(), entry.Ref, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}
