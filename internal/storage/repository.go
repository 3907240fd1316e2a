package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spendly/internal/core"
	"spendly/internal/log"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// DSN builds a modernc.org/sqlite connection string with foreign keys and a
// busy timeout enabled.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, logger: logger, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, rec UserRecord) (core.User, error) {
	u := rec.User
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	provider := rec.Provider
	if provider == "" {
		provider = ProviderPassword
	}
	now := core.Millis(r.now())

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, photo_url, password_hash, provider, subject, monthly_budget, created_at, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PhotoURL, rec.PasswordHash, provider, rec.Subject,
		core.DefaultMonthlyBudget.String(), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrEmailExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

const userColumns = `id, email, display_name, photo_url, password_hash, provider, subject`

func scanUser(row interface{ Scan(...any) error }) (UserRecord, error) {
	var rec UserRecord
	err := row.Scan(&rec.User.ID, &rec.User.Email, &rec.User.DisplayName, &rec.User.PhotoURL,
		&rec.PasswordHash, &rec.Provider, &rec.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	rec, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return UserRecord{}, fmt.Errorf("get user by email: %w", err)
	}
	return rec, err
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	rec, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return rec.User, err
}

func (r *SQLiteRepository) UpsertFederatedUser(ctx context.Context, rec UserRecord) (core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE (provider = ? AND subject = ? AND subject != '') OR email = ? LIMIT 1`,
		rec.Provider, rec.Subject, normalizeEmail(rec.User.Email)))
	now := core.Millis(r.now())

	switch {
	case errors.Is(err, ErrNotFound):
		u := rec.User
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		u.Email = normalizeEmail(u.Email)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, display_name, photo_url, password_hash, provider, subject, monthly_budget, created_at, last_login)
			 VALUES (?, ?, ?, ?, '', ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.DisplayName, u.PhotoURL, rec.Provider, rec.Subject,
			core.DefaultMonthlyBudget.String(), now, now)
		if err != nil {
			return core.User{}, fmt.Errorf("insert federated user: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return core.User{}, fmt.Errorf("commit: %w", err)
		}
		return u, nil
	case err != nil:
		return core.User{}, fmt.Errorf("find federated user: %w", err)
	}

	u := existing.User
	if rec.User.DisplayName != "" {
		u.DisplayName = rec.User.DisplayName
	}
	if rec.User.PhotoURL != "" {
		u.PhotoURL = rec.User.PhotoURL
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET display_name = ?, photo_url = ?, subject = CASE WHEN subject = '' THEN ? ELSE subject END, last_login = ? WHERE id = ?`,
		u.DisplayName, u.PhotoURL, rec.Subject, now, u.ID)
	if err != nil {
		return core.User{}, fmt.Errorf("update federated user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var (
		budget             string
		createdAt, lastLog int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT monthly_budget, created_at, last_login FROM users WHERE id = ?`, userID).
		Scan(&budget, &createdAt, &lastLog)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	b, err := decimal.NewFromString(budget)
	if err != nil || !b.IsPositive() {
		r.logger.Warn("Stored budget unreadable, using default", log.FieldUserID, userID, "value", budget)
		b = core.DefaultMonthlyBudget
	}
	return core.Profile{
		UserID:        userID,
		MonthlyBudget: b,
		CreatedAt:     core.FromMillis(createdAt),
		LastLogin:     core.FromMillis(lastLog),
	}, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, userID string, budget decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET monthly_budget = ? WHERE id = ?`, budget.String(), userID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, core.Millis(at), userID)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return requireRow(res)
}

const expenseColumns = `id, user_id, amount, category, description, timestamp`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e      core.Expense
		amount string
		cat    string
		ts     int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &amount, &cat, &e.Description, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, ErrNotFound
		}
		return core.Expense{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %s amount %q: %w", e.ID, amount, err)
	}
	e.Amount = d
	e.Category = core.Category(cat)
	e.Timestamp = core.FromMillis(ts)
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY timestamp DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND id = ?`, userID, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, err
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.String(), string(e.Category), e.Description, core.Millis(e.Timestamp))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, e.UserID,
		log.FieldAmount, e.Amount.String(),
		log.FieldCategory, string(e.Category))
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id string, edit core.ExpenseEdit) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, description = ? WHERE user_id = ? AND id = ?`,
		edit.Amount.String(), string(edit.Category), strings.TrimSpace(edit.Description), userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := requireRow(res); err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
