package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carias-rh/lx-toolbox/internal/domain"
)

const maxAuditLimit = 500

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Team       *string
	TicketID   *string
	EventTypes []string
	Since      *time.Time
	Limit      int
}

// AssignmentAuditRepository persists assignment events.
type AssignmentAuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListWithFilter(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}

type assignmentAuditRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentAuditRepository builds repository.
func NewAssignmentAuditRepository(pool *pgxpool.Pool) AssignmentAuditRepository {
	return &assignmentAuditRepository{pool: pool}
}

// Create inserts entry. Replayed events (same event id) are ignored.
func (r *assignmentAuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO assignment_audit (event_id, event_type, run_id, team, ticket_id, ticket_number, assignee, acknowledged, fields, reason, occurred_at)
        VALUES ($1,$2,NULLIF($3,'')::uuid,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (event_id) DO NOTHING
        RETURNING id, created_at`
	fields := entry.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	err := r.pool.QueryRow(ctx, query,
		entry.EventID,
		entry.EventType,
		entry.RunID,
		entry.Team,
		entry.TicketID,
		entry.TicketNumber,
		entry.Assignee,
		entry.Acknowledged,
		fields,
		entry.Reason,
		entry.OccurredAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r *assignmentAuditRepository) ListWithFilter(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error) {
	query, args := buildAuditQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry domain.AuditEntry
			runID *string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.EventType,
			&runID,
			&entry.Team,
			&entry.TicketID,
			&entry.TicketNumber,
			&entry.Assignee,
			&entry.Acknowledged,
			&entry.Fields,
			&entry.Reason,
			&entry.OccurredAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if runID != nil {
			entry.RunID = *runID
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func buildAuditQuery(filter AuditFilter) (string, []any) {
	base := `SELECT id, event_id::text, event_type, run_id::text, team, ticket_id, ticket_number, assignee,
                    acknowledged, fields, reason, occurred_at, created_at
             FROM assignment_audit`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Team != nil {
		args = append(args, *filter.Team)
		clauses = append(clauses, fmt.Sprintf("team=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxAuditLimit {
		limit = 50
	}
	args = append(args, limit)
	query := fmt.Sprintf("%s WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d",
		base, strings.Join(clauses, " AND "), len(args))
	return query, args
}
