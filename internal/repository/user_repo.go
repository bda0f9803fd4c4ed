package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"shipmentportal/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user and fills in its id and created_at.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (email, username, password_hash, full_name, role, team, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING user_id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		u.Email, u.Username, u.PasswordHash, u.FullName, string(u.Role), u.Team, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	return translate(err, "User", "User already exists")
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT user_id, email, username, password_hash, full_name, role, team,
               is_active, last_login, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.Team,
		&u.IsActive, &u.LastLogin, &u.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "User", "")
	}
	return &u, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE user_id = $1`, userID, at)
	return err
}
