package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/workflow"
)

// StageFilter captures stage listing parameters. ProcessID is mandatory.
type StageFilter struct {
	ProcessID     string
	ParentStageID *string
	RootsOnly     bool
	IsInitial     *bool
	IsFinal       *bool
	SearchTerm    *string
	Limit         int
	Offset        int
}

// StageRepository encapsulates stage persistence. Writes are scoped by
// process id so a stage of one process can never be touched through another.
type StageRepository interface {
	Create(ctx context.Context, stage *domain.Stage) error
	Update(ctx context.Context, stage *domain.Stage) error
	Delete(ctx context.Context, processID, id string) error
	GetByID(ctx context.Context, id string) (*domain.Stage, error)
	List(ctx context.Context, filter StageFilter) ([]domain.Stage, int, error)
	ListByProcess(ctx context.Context, processID string) ([]domain.Stage, error)
	NameExists(ctx context.Context, processID string, parentID *string, name, excludeID string) (bool, error)
	OrderSlots(ctx context.Context, processID string, orderIndex, priority *int) (workflow.OrderSlots, error)
	GetInitial(ctx context.Context, processID string) (*domain.Stage, error)
	ListFinal(ctx context.Context, processID string) ([]domain.Stage, error)
	CountChildren(ctx context.Context, id string) (int, error)
	UpdateOrder(ctx context.Context, processID, id string, orderIndex, priority int) error
}

const stageColumns = `id, process_id, parent_stage_id, name, description, color, order_index, priority,
               is_initial, is_final, sla_hours, required_permissions, automation_rules, settings,
               created_at, updated_at`

const stageOrder = `ORDER BY order_index ASC, priority ASC, created_at ASC`

type stageRepository struct {
	pool *pgxpool.Pool
}

// NewStageRepository instantiates repository.
func NewStageRepository(pool *pgxpool.Pool) StageRepository {
	return &stageRepository{pool: pool}
}

func (r *stageRepository) Create(ctx context.Context, stage *domain.Stage) error {
	const query = `
        INSERT INTO stages (process_id, parent_stage_id, name, description, color, order_index, priority,
            is_initial, is_final, sla_hours, required_permissions, automation_rules, settings)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		stage.ProcessID,
		stage.ParentStageID,
		stage.Name,
		stage.Description,
		stage.Color,
		stage.OrderIndex,
		stage.Priority,
		stage.IsInitial,
		stage.IsFinal,
		stage.SLAHours,
		stage.RequiredPermissions,
		stage.AutomationRules,
		stage.Settings,
	).Scan(&stage.ID, &stage.CreatedAt, &stage.UpdatedAt)
}

func (r *stageRepository) Update(ctx context.Context, stage *domain.Stage) error {
	const query = `
        UPDATE stages SET name=$1, description=$2, color=$3, order_index=$4, priority=$5,
            is_initial=$6, is_final=$7, sla_hours=$8, required_permissions=$9, automation_rules=$10,
            settings=$11, updated_at=NOW()
        WHERE id=$12 AND process_id=$13
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		stage.Name,
		stage.Description,
		stage.Color,
		stage.OrderIndex,
		stage.Priority,
		stage.IsInitial,
		stage.IsFinal,
		stage.SLAHours,
		stage.RequiredPermissions,
		stage.AutomationRules,
		stage.Settings,
		stage.ID,
		stage.ProcessID,
	).Scan(&stage.UpdatedAt)
}

func (r *stageRepository) Delete(ctx context.Context, processID, id string) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM stages WHERE id=$1 AND process_id=$2`, id, processID)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *stageRepository) GetByID(ctx context.Context, id string) (*domain.Stage, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + stageColumns + ` FROM stages WHERE id=$1`
	return scanStage(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *stageRepository) List(ctx context.Context, filter StageFilter) ([]domain.Stage, int, error) {
	clauses := []string{"process_id=$1"}
	args := []any{filter.ProcessID}

	if filter.RootsOnly {
		clauses = append(clauses, "parent_stage_id IS NULL")
	} else if filter.ParentStageID != nil {
		args = append(args, *filter.ParentStageID)
		clauses = append(clauses, fmt.Sprintf("parent_stage_id=$%d", len(args)))
	}
	if filter.IsInitial != nil {
		args = append(args, *filter.IsInitial)
		clauses = append(clauses, fmt.Sprintf("is_initial=$%d", len(args)))
	}
	if filter.IsFinal != nil {
		args = append(args, *filter.IsFinal)
		clauses = append(clauses, fmt.Sprintf("is_final=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM stages WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stages: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM stages WHERE %s %s LIMIT %d OFFSET %d`,
		stageColumns, where, stageOrder, limit, offset)
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	stages, err := scanStages(rows)
	if err != nil {
		return nil, 0, err
	}
	return stages, total, nil
}

func (r *stageRepository) ListByProcess(ctx context.Context, processID string) ([]domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE process_id=$1 ` + stageOrder
	rows, err := conn(ctx, r.pool).Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("list process stages: %w", err)
	}
	defer rows.Close()
	return scanStages(rows)
}

func (r *stageRepository) NameExists(ctx context.Context, processID string, parentID *string, name, excludeID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM stages
            WHERE process_id=$1
              AND parent_stage_id IS NOT DISTINCT FROM $2::uuid
              AND LOWER(name)=LOWER($3)
              AND ($4 = '' OR id::text <> $4)
        )`
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, query, processID, parentID, strings.TrimSpace(name), excludeID).Scan(&exists)
	return exists, err
}

func (r *stageRepository) OrderSlots(ctx context.Context, processID string, orderIndex, priority *int) (workflow.OrderSlots, error) {
	const query = `
        SELECT COALESCE(MAX(order_index), 0),
               COALESCE(MAX(priority), 0),
               COALESCE(BOOL_OR(order_index = $2), FALSE),
               COALESCE(BOOL_OR(priority = $3), FALSE)
        FROM stages WHERE process_id=$1`
	var slots workflow.OrderSlots
	err := conn(ctx, r.pool).QueryRow(ctx, query, processID, orderIndex, priority).Scan(
		&slots.MaxOrderIndex,
		&slots.MaxPriority,
		&slots.OrderTaken,
		&slots.PriorityTaken,
	)
	return slots, err
}

func (r *stageRepository) GetInitial(ctx context.Context, processID string) (*domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE process_id=$1 AND is_initial = TRUE ` + stageOrder + ` LIMIT 1`
	return scanStage(conn(ctx, r.pool).QueryRow(ctx, query, processID))
}

func (r *stageRepository) ListFinal(ctx context.Context, processID string) ([]domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE process_id=$1 AND is_final = TRUE ` + stageOrder
	rows, err := conn(ctx, r.pool).Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("list final stages: %w", err)
	}
	defer rows.Close()
	return scanStages(rows)
}

func (r *stageRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM stages WHERE parent_stage_id=$1`, id).Scan(&count)
	return count, err
}

func (r *stageRepository) UpdateOrder(ctx context.Context, processID, id string, orderIndex, priority int) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	const query = `
        UPDATE stages SET order_index=$1, priority=$2, updated_at=NOW()
        WHERE id=$3 AND process_id=$4`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, orderIndex, priority, id, processID)
	if err != nil {
		return fmt.Errorf("reorder stage: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanStage(row rowScanner) (*domain.Stage, error) {
	var stage domain.Stage
	if err := row.Scan(
		&stage.ID,
		&stage.ProcessID,
		&stage.ParentStageID,
		&stage.Name,
		&stage.Description,
		&stage.Color,
		&stage.OrderIndex,
		&stage.Priority,
		&stage.IsInitial,
		&stage.IsFinal,
		&stage.SLAHours,
		&stage.RequiredPermissions,
		&stage.AutomationRules,
		&stage.Settings,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &stage, nil
}

func scanStages(rows pgx.Rows) ([]domain.Stage, error) {
	var result []domain.Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stage)
	}
	return result, rows.Err()
}
