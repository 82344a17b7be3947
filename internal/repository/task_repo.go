package repository

import (
	"context"
	"time"

	"shopsync_v1_202608/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ==================== ScheduledTaskRepository 延迟任务仓库 ====================

// ScheduledTaskRepository 延迟任务仓库接口
type ScheduledTaskRepository interface {
	// Insert 插入一条待执行任务
	Insert(ctx context.Context, task *model.ScheduledTask) error
	// UpsertKeyed 按去重键插入或改写：同键任务把 run_at 顺延到新时间（防抖）
	UpsertKeyed(ctx context.Context, task *model.ScheduledTask) error
	// ClaimDue 认领到期任务：先查再按 (id, status=pending) 条件置 running，
	// 行级状态迁移保证同一任务不会被并发执行两次
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledTask, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error

	CountPendingByType(ctx context.Context, taskType string) (int64, error)
	ListByType(ctx context.Context, taskType string) ([]model.ScheduledTask, error)
}

type scheduledTaskRepository struct {
	db *gorm.DB
}

// NewScheduledTaskRepository 创建延迟任务仓库
func NewScheduledTaskRepository(db *gorm.DB) ScheduledTaskRepository {
	return &scheduledTaskRepository{db: db}
}

func (r *scheduledTaskRepository) Insert(ctx context.Context, task *model.ScheduledTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *scheduledTaskRepository) UpsertKeyed(ctx context.Context, task *model.ScheduledTask) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedupe_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_at", "payload", "status", "updated_at",
		}),
	}).Create(task).Error
}

func (r *scheduledTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledTask, error) {
	var due []model.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", model.TaskStatusPending, now).
		Order("run_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]model.ScheduledTask, 0, len(due))
	for _, task := range due {
		// run_at 条件要再查一次：查出后、认领前 keyed 去重可能已把任务推到未来
		result := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
			Where("id = ? AND status = ? AND run_at <= ?", task.ID, model.TaskStatusPending, now).
			Updates(map[string]interface{}{
				"status":  model.TaskStatusRunning,
				"attempt": gorm.Expr("attempt + 1"),
			})
		if result.Error != nil {
			return nil, result.Error
		}
		// 被其他进程抢先认领，跳过
		if result.RowsAffected == 0 {
			continue
		}
		claimed = append(claimed, task)
	}
	return claimed, nil
}

func (r *scheduledTaskRepository) MarkDone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("id = ?", id).
		Update("status", model.TaskStatusDone).Error
}

func (r *scheduledTaskRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusFailed,
			"last_error": errMsg,
		}).Error
}

func (r *scheduledTaskRepository) CountPendingByType(ctx context.Context, taskType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("task_type = ? AND status = ?", taskType, model.TaskStatusPending).
		Count(&count).Error
	return count, err
}

func (r *scheduledTaskRepository) ListByType(ctx context.Context, taskType string) ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("task_type = ?", taskType).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}
