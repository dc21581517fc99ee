package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"project_archive/internal/models"
)

const (
	usersTable = `"user"`
	otpTable   = "user_verification"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrOTPNotFound  = errors.New("otp not found")
)

// ProfileUpdate carries the fields of a partial profile update. Nil fields
// are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	PhoneNo   *string
	Photo     *string
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PhoneNo == nil && p.Photo == nil
}

type Storage interface {
	// Пользователи
	GetUserByEmail(ctx context.Context, email string, adminOnly bool) (models.User, error)
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	CreateUser(ctx context.Context, email, username, firstName, lastName string) (int64, error)
	UpdateUserProfile(ctx context.Context, userID int64, update ProfileUpdate) error
	GetPasswordHash(ctx context.Context, userID int64) (string, error)

	// OTP-коды
	CreateOTP(ctx context.Context, userID int64, code string) error
	GetOTP(ctx context.Context, userID int64, code string) (models.OTPRecord, error)
	DeleteOTPsForUser(ctx context.Context, userID int64) error

	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(dbURL string, maxConns int32) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	poolConfig.MaxConns = maxConns

	conn, err := pgxpool.ConnectConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

const userColumns = "id, uuid, username, email, first_name, last_name, phone_no, user_role, photo, is_active, is_archived, date_joined, updated_at"

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.UUID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PhoneNo,
		&user.Role,
		&user.Photo,
		&user.IsActive,
		&user.IsArchived,
		&user.DateJoined,
		&user.UpdatedAt,
	)

	return user, err
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string, adminOnly bool) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1 AND NOT is_archived", userColumns, usersTable)
	if adminOnly {
		query += fmt.Sprintf(" AND user_role IN ('%s', '%s')", models.RoleAdmin, models.RoleStaff)
	}
	query += " LIMIT 1;"

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 AND NOT is_archived LIMIT 1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, email, username, firstName, lastName string) (int64, error) {
	const op = "storage.CreateUser"

	externalID, err := uuid.NewV4()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
	(uuid, username, first_name, last_name, phone_no, user_role, email, is_active, is_archived, date_joined, updated_at)
	VALUES ($1, $2, $3, $4, '', $5, $6, TRUE, FALSE, now(), now())
	RETURNING id;`, usersTable)

	var userID int64
	err = p.db.QueryRow(ctx, query, externalID, username, firstName, lastName, models.RoleVisitor, email).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

func (p *PostgresStorage) UpdateUserProfile(ctx context.Context, userID int64, update ProfileUpdate) error {
	const op = "storage.UpdateUserProfile"

	var (
		clauses []string
		args    []interface{}
	)

	addClause := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	addClause("first_name", update.FirstName)
	addClause("last_name", update.LastName)
	addClause("phone_no", update.PhoneNo)
	addClause("photo", update.Photo)

	if len(clauses) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at=now() WHERE id=$%d;",
		usersTable, strings.Join(clauses, ", "), len(args))

	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) GetPasswordHash(ctx context.Context, userID int64) (string, error) {
	const op = "storage.GetPasswordHash"

	var hash string
	query := fmt.Sprintf("SELECT password_hash FROM %s WHERE id=$1;", usersTable)

	if err := p.db.QueryRow(ctx, query, userID).Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hash, nil
}

func (p *PostgresStorage) CreateOTP(ctx context.Context, userID int64, code string) error {
	const op = "storage.CreateOTP"

	query := fmt.Sprintf("INSERT INTO %s(user_id, otp, created_at) VALUES ($1, $2, now());", otpTable)

	if _, err := p.db.Exec(ctx, query, userID, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) GetOTP(ctx context.Context, userID int64, code string) (models.OTPRecord, error) {
	const op = "storage.GetOTP"

	var record models.OTPRecord
	query := fmt.Sprintf("SELECT id, user_id, otp, created_at FROM %s WHERE user_id=$1 AND otp=$2 LIMIT 1;", otpTable)

	err := p.db.QueryRow(ctx, query, userID, code).Scan(&record.ID, &record.UserID, &record.Code, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record, fmt.Errorf("%s: %w", op, ErrOTPNotFound)
		}
		return record, fmt.Errorf("%s: %w", op, err)
	}

	return record, nil
}

func (p *PostgresStorage) DeleteOTPsForUser(ctx context.Context, userID int64) error {
	const op = "storage.DeleteOTPsForUser"

	query := fmt.Sprintf("DELETE FROM %s WHERE user_id=$1;", otpTable)

	if _, err := p.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
