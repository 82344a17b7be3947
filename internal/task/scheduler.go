package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"gorm.io/datatypes"
)

// ==================== TaskQueue 延迟任务入队 ====================

// TaskQueue 把延迟执行落为 scheduled_tasks 表的持久行
// 实现 service.TaskScheduler
type TaskQueue struct {
	taskRepo repository.ScheduledTaskRepository
}

// NewTaskQueue 创建任务队列
func NewTaskQueue(taskRepo repository.ScheduledTaskRepository) *TaskQueue {
	return &TaskQueue{taskRepo: taskRepo}
}

// Schedule 延迟 delay 后执行一次 taskType
func (q *TaskQueue) Schedule(ctx context.Context, delay time.Duration, taskType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}
	return q.taskRepo.Insert(ctx, &model.ScheduledTask{
		TaskType: taskType,
		Payload:  datatypes.JSON(body),
		RunAt:    time.Now().Add(delay),
		Status:   model.TaskStatusPending,
	})
}

// ScheduleKeyed 带去重键调度
// 同键任务已存在时改写其 run_at 与载荷（防抖：新触发顺延执行时间）
func (q *TaskQueue) ScheduleKeyed(ctx context.Context, key string, delay time.Duration, taskType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}
	return q.taskRepo.UpsertKeyed(ctx, &model.ScheduledTask{
		TaskType:  taskType,
		DedupeKey: &key,
		Payload:   datatypes.JSON(body),
		RunAt:     time.Now().Add(delay),
		Status:    model.TaskStatusPending,
	})
}
