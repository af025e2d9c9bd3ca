package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memberColumns = `member_id, member_name, policy_type, policy_number, last_claim_type, last_claim_amount`

// PostgresStore implements Store on a Postgres "member" table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed Store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}

// EnsureSchema creates the member table when it does not exist.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := ps.DB.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS member (
            member_id         VARCHAR(16) PRIMARY KEY,
            member_name       VARCHAR(50) NOT NULL,
            policy_type       VARCHAR(50) NOT NULL,
            policy_number     VARCHAR(50),
            last_claim_type   VARCHAR(50),
            last_claim_amount INTEGER
        );
    `)
	if err != nil {
		return fmt.Errorf("ensure member schema: %w", err)
	}
	return nil
}

// Seed upserts rows in a single batch.
func (ps *PostgresStore) Seed(ctx context.Context, rows ...Member) error {
	if len(rows) == 0 {
		rows = SeedMembers()
	}

	batch := &pgx.Batch{}
	for _, m := range rows {
		batch.Queue(`
            INSERT INTO member (`+memberColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (member_id) DO UPDATE SET
                member_name = EXCLUDED.member_name,
                policy_type = EXCLUDED.policy_type,
                policy_number = EXCLUDED.policy_number,
                last_claim_type = EXCLUDED.last_claim_type,
                last_claim_amount = EXCLUDED.last_claim_amount
        `, m.ID, m.Name, m.PolicyType, m.PolicyNumber, m.LastClaimType, m.LastClaimAmount)
	}

	if err := ps.DB.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed members: %w", err)
	}

	return nil
}

// FindByName implements Store. name is matched literally; LIKE wildcards in
// it are escaped.
func (ps *PostgresStore) FindByName(ctx context.Context, name string) ([]Member, error) {
	rows, err := ps.DB.Query(ctx, `
        SELECT `+memberColumns+`
        FROM member
        WHERE member_name ILIKE $1 ESCAPE '\'
        ORDER BY member_id
    `, containsPattern(name))
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// FindByID implements Store.
func (ps *PostgresStore) FindByID(ctx context.Context, id string) (Member, error) {
	rows, err := ps.DB.Query(ctx, `
        SELECT `+memberColumns+`
        FROM member
        WHERE member_id = UPPER($1)
    `, id)
	if err != nil {
		return Member{}, err
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return m, err
}

// List implements Store.
func (ps *PostgresStore) List(ctx context.Context) ([]Member, error) {
	rows, err := ps.DB.Query(ctx, `SELECT `+memberColumns+` FROM member ORDER BY member_id`)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func collectMembers(rows pgx.Rows) ([]Member, error) {
	return pgx.CollectRows(rows, scanMember)
}

func scanMember(row pgx.CollectableRow) (Member, error) {
	var (
		m            Member
		policyNumber *string
		claimType    *string
		claimAmount  *int32
	)

	if err := row.Scan(&m.ID, &m.Name, &m.PolicyType, &policyNumber, &claimType, &claimAmount); err != nil {
		return Member{}, err
	}

	if policyNumber != nil {
		m.PolicyNumber = *policyNumber
	}
	if claimType != nil {
		m.LastClaimType = *claimType
	}
	if claimAmount != nil {
		m.LastClaimAmount = int(*claimAmount)
	}

	return m, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching name anywhere.
func containsPattern(name string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(name)) + "%"
}
