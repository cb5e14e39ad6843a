package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/database"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/user/domain"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserConflict = errors.New("user with this email or phone number already exists")

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, userID string, cart domain.Cart) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (name, email, phone_number, role, password_hash, cart_data, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, $6, $7) RETURNING id, created_at, updated_at`

	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	var phoneNumber sql.NullString
	if user.PhoneNumber != nil {
		phoneNumber = sql.NullString{String: *user.PhoneNumber, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Email, phoneNumber, user.Role, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if database.IsUniqueViolation(err) {
			logger.Error("CreateUser: unique violation", err)
			return ErrUserConflict
		}
		logger.Error("CreateUser: failed to insert user", err)
		return err
	}
	return nil
}

func (r *postgresUserRepository) getUserBy(ctx context.Context, field, value string) (*domain.User, error) {
	query := `SELECT id, name, email, phone_number, role, password_hash, created_at, updated_at FROM users WHERE ` + field + ` = $1`
	user := &domain.User{}
	var phoneNumber sql.NullString

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Name, &user.Email, &phoneNumber, &user.Role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logger.Error("GetUserBy"+field+": query failed", err)
		return nil, err
	}
	if phoneNumber.Valid {
		user.PhoneNumber = &phoneNumber.String
	}
	return user, nil
}

func (r *postgresUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUserBy(ctx, "id", id)
}

func (r *postgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUserBy(ctx, "email", email)
}

func (r *postgresUserRepository) GetUserByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	return r.getUserBy(ctx, "phone_number", phoneNumber)
}

// GetUserByIdentifier mencari berdasarkan email dulu, lalu nomor telepon.
func (r *postgresUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := r.GetUserByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) { // Error lain selain not found
		return nil, err
	}
	return r.GetUserByPhoneNumber(ctx, identifier)
}

func (r *postgresUserRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT cart_data FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logger.Error("GetCart: query failed", err, logger.Fields{"user_id": userID})
		return nil, err
	}
	cart := domain.Cart{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// SaveCart menimpa seluruh isi keranjang. Cart kosong = keranjang dikosongkan.
func (r *postgresUserRepository) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	if cart == nil {
		cart = domain.Cart{}
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET cart_data = $2, updated_at = NOW() WHERE id = $1`, userID, raw)
	if err != nil {
		logger.Error("SaveCart: exec failed", err, logger.Fields{"user_id": userID})
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
