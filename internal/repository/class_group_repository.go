package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

// ClassGroupRepository handles persistence of class groups.
type ClassGroupRepository struct {
	db *sqlx.DB
}

// NewClassGroupRepository constructs the repository.
func NewClassGroupRepository(db *sqlx.DB) *ClassGroupRepository {
	return &ClassGroupRepository{db: db}
}

const classGroupColumns = `id, name, days_of_week, start_time, duration_minutes, memo, active, created_at, updated_at`

// List returns active class groups ordered by start time.
func (r *ClassGroupRepository) List(ctx context.Context) ([]models.ClassGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_groups WHERE active ORDER BY start_time`, classGroupColumns)
	var groups []models.ClassGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list class groups: %w", err)
	}
	return groups, nil
}

// FindByID returns an active class group by its ID.
func (r *ClassGroupRepository) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_groups WHERE id = $1 AND active`, classGroupColumns)
	var group models.ClassGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create persists a new class group.
func (r *ClassGroupRepository) Create(ctx context.Context, group *models.ClassGroup) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.Active = true
	group.CreatedAt = now
	group.UpdatedAt = now
	const query = `INSERT INTO class_groups (id, name, days_of_week, start_time, duration_minutes, memo, active, created_at, updated_at)
        VALUES (:id, :name, :days_of_week, :start_time, :duration_minutes, :memo, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create class group: %w", err)
	}
	return nil
}

// Update persists editable class group fields.
func (r *ClassGroupRepository) Update(ctx context.Context, group *models.ClassGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_groups SET name = :name, days_of_week = :days_of_week,
        start_time = :start_time, duration_minutes = :duration_minutes, memo = :memo,
        updated_at = :updated_at WHERE id = :id AND active`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update class group: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a class group.
func (r *ClassGroupRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE class_groups SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class group: %w", err)
	}
	return nil
}
