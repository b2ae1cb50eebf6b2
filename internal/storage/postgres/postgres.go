package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"presence_service/internal/config"
	"presence_service/internal/models"
	"presence_service/internal/storage"
	"presence_service/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// SaveCredential inserts a new credential. Emails are unique; callers
// lower-case them before the insert.
func (r *PostgresRepo) SaveCredential(ctx context.Context, email, passwordHash string, admin, viewOnly bool) (models.Credential, error) {
	const op = "storage.postgres.SaveCredential"

	cred := models.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Admin:        admin,
		ViewOnly:     viewOnly,
	}

	query := `
		INSERT INTO credentials (id, email, password_hash, is_admin, is_view_only)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.pool.Exec(ctx, query, cred.ID, cred.Email, cred.PasswordHash, cred.Admin, cred.ViewOnly)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Credential{}, storage.ErrEmailTaken
		}

		return models.Credential{}, fmt.Errorf("%s: failed to save credential: %w", op, err)
	}

	return cred, nil
}

func (r *PostgresRepo) CredentialByEmail(ctx context.Context, email string) (models.Credential, error) {
	query := `
		SELECT id, email, password_hash, is_admin, is_view_only, access_token
		FROM credentials
		WHERE email = $1;
	`

	row := r.pool.QueryRow(ctx, query, email)

	var c models.Credential
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.Admin,
		&c.ViewOnly,
		&c.Token,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credential{}, storage.ErrCredentialNotFound
		}

		return models.Credential{}, err
	}

	return c, nil
}

func (r *PostgresRepo) CredentialByID(ctx context.Context, id string) (models.Credential, error) {
	query := `
		SELECT id, email, password_hash, is_admin, is_view_only, access_token
		FROM credentials
		WHERE id = $1;
	`

	row := r.pool.QueryRow(ctx, query, id)

	var c models.Credential
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.Admin,
		&c.ViewOnly,
		&c.Token,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Credential{}, storage.ErrCredentialNotFound
	}

	return c, err
}

// UpdateAccessToken records the last-issued access token on the
// credential. Record-keeping only, not revocation.
func (r *PostgresRepo) UpdateAccessToken(ctx context.Context, id, token string) error {
	query := `UPDATE credentials SET access_token = $1 WHERE id = $2;`

	tag, err := r.pool.Exec(ctx, query, token, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCredentialNotFound
	}

	return nil
}

func (r *PostgresRepo) Teams(ctx context.Context) ([]models.Team, error) {
	query := `
		SELECT id, team, priority, color, col1, col2, col3, check_in_col, hyperlink
		FROM teams
		ORDER BY priority, team;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []models.Team{}
	for rows.Next() {
		var t models.Team
		err := rows.Scan(&t.ID, &t.Team, &t.Priority, &t.Color, &t.Col1, &t.Col2, &t.Col3, &t.CheckInCol, &t.Hyperlink)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

func (r *PostgresRepo) SaveTeam(ctx context.Context, t models.Team) (models.Team, error) {
	const op = "storage.postgres.SaveTeam"

	t.ID = uuid.NewString()

	query := `
		INSERT INTO teams (id, team, priority, color, col1, col2, col3, check_in_col, hyperlink)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	_, err := r.pool.Exec(ctx, query, t.ID, t.Team, t.Priority, t.Color, t.Col1, t.Col2, t.Col3, t.CheckInCol, t.Hyperlink)
	if err != nil {
		return models.Team{}, fmt.Errorf("%s: failed to save team: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) TeamByID(ctx context.Context, id string) (models.Team, error) {
	query := `
		SELECT id, team, priority, color, col1, col2, col3, check_in_col, hyperlink
		FROM teams
		WHERE id = $1;
	`

	var t models.Team
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Team, &t.Priority, &t.Color, &t.Col1, &t.Col2, &t.Col3, &t.CheckInCol, &t.Hyperlink,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Team{}, storage.ErrTeamNotFound
	}

	return t, err
}

func (r *PostgresRepo) UpdateTeam(ctx context.Context, t models.Team) error {
	query := `
		UPDATE teams
		SET team = $1, priority = $2, color = $3, col1 = $4, col2 = $5, col3 = $6, check_in_col = $7, hyperlink = $8
		WHERE id = $9;
	`

	tag, err := r.pool.Exec(ctx, query, t.Team, t.Priority, t.Color, t.Col1, t.Col2, t.Col3, t.CheckInCol, t.Hyperlink, t.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrTeamNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteTeam(ctx context.Context, id string) error {
	query := `DELETE FROM teams WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrTeamNotFound
	}

	return nil
}

func (r *PostgresRepo) Users(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, name, team_id, team, phone, email, memo, priority, status, status_text
		FROM users
		ORDER BY priority, name;
	`

	return r.queryUsers(ctx, query)
}

func (r *PostgresRepo) UsersByTeam(ctx context.Context, teamID string) ([]models.User, error) {
	query := `
		SELECT id, name, team_id, team, phone, email, memo, priority, status, status_text
		FROM users
		WHERE team_id = $1;
	`

	return r.queryUsers(ctx, query, teamID)
}

func (r *PostgresRepo) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Name, &u.TeamID, &u.Team, &u.Phone, &u.Email, &u.Memo, &u.Priority, &u.Status, &u.StatusText)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `
		SELECT id, name, team_id, team, phone, email, memo, priority, status, status_text
		FROM users
		WHERE id = $1;
	`

	var u models.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.TeamID, &u.Team, &u.Phone, &u.Email, &u.Memo, &u.Priority, &u.Status, &u.StatusText,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	u.ID = uuid.NewString()

	query := `
		INSERT INTO users (id, name, team_id, team, phone, email, memo, priority, status, status_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Name, u.TeamID, u.Team, u.Phone, u.Email, u.Memo, u.Priority, u.Status, u.StatusText)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UpdateUser(ctx context.Context, u models.User) error {
	query := `
		UPDATE users
		SET name = $1, phone = $2, email = $3, memo = $4, priority = $5, status = $6, status_text = $7
		WHERE id = $8;
	`

	tag, err := r.pool.Exec(ctx, query, u.Name, u.Phone, u.Email, u.Memo, u.Priority, u.Status, u.StatusText, u.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// SetUserTeamName updates the denormalized team label on a single user
// record. One call per user, no transaction: the rename cascade is
// best-effort by contract.
func (r *PostgresRepo) SetUserTeamName(ctx context.Context, userID, team string) error {
	query := `UPDATE users SET team = $1 WHERE id = $2;`

	tag, err := r.pool.Exec(ctx, query, team, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteUser(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SaveMailbox(ctx context.Context, userID string) error {
	const op = "storage.postgres.SaveMailbox"

	query := `INSERT INTO mailboxes (user_id) VALUES ($1);`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: failed to save mailbox: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) MailboxByUser(ctx context.Context, userID string) (models.Mailbox, error) {
	query := `SELECT user_id, messages FROM mailboxes WHERE user_id = $1;`

	var (
		m   models.Mailbox
		raw []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&m.UserID, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Mailbox{}, storage.ErrMailboxNotFound
		}

		return models.Mailbox{}, err
	}

	if err := json.Unmarshal(raw, &m.Messages); err != nil {
		return models.Mailbox{}, err
	}

	return m, nil
}

func (r *PostgresRepo) AppendMessage(ctx context.Context, userID string, msg models.MailMessage) error {
	query := `UPDATE mailboxes SET messages = messages || $1::jsonb WHERE user_id = $2;`

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, body, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrMailboxNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteMailbox(ctx context.Context, userID string) error {
	query := `DELETE FROM mailboxes WHERE user_id = $1;`

	_, err := r.pool.Exec(ctx, query, userID)

	return err
}

func (r *PostgresRepo) AppName(ctx context.Context) (string, error) {
	query := `SELECT app_name FROM app_metadata WHERE id = 1;`

	var name string
	err := r.pool.QueryRow(ctx, query).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrAppNameNotSet
	}

	return name, err
}

func (r *PostgresRepo) SetAppName(ctx context.Context, name string) error {
	query := `
		INSERT INTO app_metadata (id, app_name)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET app_name = EXCLUDED.app_name;
	`

	_, err := r.pool.Exec(ctx, query, name)

	return err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Files)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, ".")
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
