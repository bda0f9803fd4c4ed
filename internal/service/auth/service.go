package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/rbac"
	"shipmentportal/pkg/util"
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// Identity is the user summary returned with a token.
type Identity struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     rbac.Role `json:"role"`
	Team     *string   `json:"team"`
}

type LoginResult struct {
	AccessToken string   `json:"access_token"`
	User        Identity `json:"user"`
}

type RegisterInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Team     *string `json:"team"`
}

type Service struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = util.DefaultTokenTTL
	}
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// Register creates a new user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" || in.Role == "" {
		return nil, apperr.Invalid("", "Missing required fields")
	}
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Invalid("role", "must be one of ADMIN, SEAIR_ORIGIN, SEAIR_US, VHC")
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		Username:     model.UsernameFromEmail(email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		Team:         in.Team,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", u.ID),
		zap.String("role", string(role)),
	)
	return u, nil
}

// Login checks user credentials and returns JWT.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Invalid("", "Email and password required")
	}

	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, apperr.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, apperr.ErrInactive
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Int64("user_id", u.ID), zap.Error(err))
	}

	claims := util.Claims{
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
	if u.Team != nil {
		claims.Team = *u.Team
	}
	token, err := util.GenerateJWT(claims, s.jwtSecret, s.tokenTTL, now)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		User: Identity{
			UserID:   u.ID,
			Email:    u.Email,
			FullName: u.FullName,
			Role:     u.Role,
			Team:     u.Team,
		},
	}, nil
}
