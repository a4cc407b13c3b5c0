package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketchat-service/internal/models"
)

var ErrRequestNotFound = errors.New("request not found")

// RequestRepository reads customer request posts. Posts are created by the
// marketplace itself; Create exists for seeding and tests.
type RequestRepository interface {
	GetRequest(ctx context.Context, requestID int) (models.Request, error)
	CreateRequest(ctx context.Context, customerID int, title string) (models.Request, error)
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// GetRequest fetches a request post by id.
func (r *RequestRepo) GetRequest(ctx context.Context, requestID int) (models.Request, error) {
	var req models.Request
	err := r.db.GetContext(ctx, &req, `SELECT id, customer_id, title, created_at FROM requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Request{}, ErrRequestNotFound
	}
	return req, err
}

// CreateRequest inserts a request post.
func (r *RequestRepo) CreateRequest(ctx context.Context, customerID int, title string) (models.Request, error) {
	var req models.Request
	err := r.db.QueryRowxContext(ctx, `INSERT INTO requests (customer_id, title) VALUES ($1, $2) RETURNING id, customer_id, title, created_at`, customerID, title).
		Scan(&req.ID, &req.CustomerID, &req.Title, &req.CreatedAt)
	return req, err
}
