package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platformlab/auth-service/internal/domain/entity"
	"github.com/platformlab/auth-service/internal/domain/repository"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, a *entity.AuditLog) error {
	md, err := json.Marshal(a.Metadata)
	if err != nil {
		md = []byte("{}")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, email, action, ip, user_agent, metadata)
		VALUES (NULLIF($1, '')::uuid, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, a.UserID, a.Email, a.Action, a.IP, a.UserAgent, md)
	return err
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
