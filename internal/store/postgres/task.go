package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskgrove/taskgrove/internal/domain"
)

const taskColumns = `id, owner_id, parent_task_id, hierarchy_level, hierarchy_path,
	subtask_order, subtask_count, completed_subtask_count,
	completion_behavior, progress_calculation, progress, status,
	title, description, estimated_minutes, completed_at, version, created_at, updated_at`

type TaskRepo struct {
	db querier
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{db: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		t.ID, t.OwnerID, t.ParentTaskID, t.HierarchyLevel, t.HierarchyPath,
		t.SubtaskOrder, t.SubtaskCount, t.CompletedSubtaskCount,
		t.CompletionBehavior, t.ProgressCalculation, t.Progress, t.Status,
		t.Title, t.Description, t.EstimatedMinutes, t.CompletedAt, t.Version,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 AND id = $2 FOR UPDATE`,
		ownerID, id,
	)

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetForUpdate: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) ListRoots(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE owner_id = $1 AND parent_task_id IS NULL
		 ORDER BY subtask_order, created_at
		 LIMIT 1000`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListRoots: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListRoots")
}

func (r *TaskRepo) ListChildren(ctx context.Context, ownerID, parentID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE owner_id = $1 AND parent_task_id = $2
		 ORDER BY subtask_order, created_at`,
		ownerID, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListChildren: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListChildren")
}

func (r *TaskRepo) ListDescendants(ctx context.Context, ownerID uuid.UUID, pathPrefix string, maxLevel int) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE owner_id = $1 AND hierarchy_path LIKE $2 || '%' AND hierarchy_level <= $3
		 ORDER BY hierarchy_level, subtask_order, created_at`,
		ownerID, pathPrefix, maxLevel,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListDescendants: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListDescendants")
}

func (r *TaskRepo) MaxSiblingOrder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) (int, error) {
	var max *int

	err := r.db.QueryRow(ctx,
		`SELECT MAX(subtask_order) FROM tasks
		 WHERE owner_id = $1 AND parent_task_id IS NOT DISTINCT FROM $2`,
		ownerID, parentID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("taskRepo.MaxSiblingOrder: %w", err)
	}
	if max == nil {
		return -1, nil
	}

	return *max, nil
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET title = $1, description = $2, estimated_minutes = $3,
		        completion_behavior = $4, progress_calculation = $5,
		        progress = $6, status = $7, completed_at = $8,
		        version = version + 1, updated_at = now()
		 WHERE owner_id = $9 AND id = $10 AND version = $11`,
		t.Title, t.Description, t.EstimatedMinutes,
		t.CompletionBehavior, t.ProgressCalculation,
		t.Progress, t.Status, t.CompletedAt,
		t.OwnerID, t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Update: version %d: %w", t.Version, domain.ErrConflict)
	}
	t.Version++

	return nil
}

func (r *TaskRepo) UpdateHierarchy(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET parent_task_id = $1, hierarchy_level = $2, hierarchy_path = $3,
		        subtask_order = $4, version = version + 1, updated_at = now()
		 WHERE owner_id = $5 AND id = $6 AND version = $7`,
		t.ParentTaskID, t.HierarchyLevel, t.HierarchyPath,
		t.SubtaskOrder, t.OwnerID, t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.UpdateHierarchy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.UpdateHierarchy: version %d: %w", t.Version, domain.ErrConflict)
	}
	t.Version++

	return nil
}

func (r *TaskRepo) UpdateAggregates(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET subtask_count = $1, completed_subtask_count = $2,
		        progress = $3, status = $4, completed_at = $5, updated_at = now()
		 WHERE owner_id = $6 AND id = $7`,
		t.SubtaskCount, t.CompletedSubtaskCount,
		t.Progress, t.Status, t.CompletedAt,
		t.OwnerID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.UpdateAggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.UpdateAggregates: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) UpdateOrder(ctx context.Context, ownerID, id uuid.UUID, order int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET subtask_order = $1, version = version + 1, updated_at = now()
		 WHERE owner_id = $2 AND id = $3`,
		order, ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.UpdateOrder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.UpdateOrder: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM tasks WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) DeleteSubtree(ctx context.Context, ownerID, id uuid.UUID, pathPrefix string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM tasks
		 WHERE owner_id = $1 AND (id = $2 OR hierarchy_path LIKE $3 || '%')`,
		ownerID, id, pathPrefix,
	)
	if err != nil {
		return 0, fmt.Errorf("taskRepo.DeleteSubtree: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("taskRepo.DeleteSubtree: %w", domain.ErrNotFound)
	}

	return tag.RowsAffected(), nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.ParentTaskID, &t.HierarchyLevel, &t.HierarchyPath,
		&t.SubtaskOrder, &t.SubtaskCount, &t.CompletedSubtaskCount,
		&t.CompletionBehavior, &t.ProgressCalculation, &t.Progress, &t.Status,
		&t.Title, &t.Description, &t.EstimatedMinutes, &t.CompletedAt, &t.Version,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}
