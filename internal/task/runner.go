package task

import (
	"context"
	"log"
	"time"

	"shopsync_v1_202608/internal/model"
	"shopsync_v1_202608/internal/repository"

	"github.com/robfig/cron/v3"
)

// ==================== TaskRunner 延迟任务执行器 ====================

// Handler 任务处理函数
type Handler func(ctx context.Context, task *model.ScheduledTask) error

// TaskRunner 到期任务执行器
// 每秒轮询一次 scheduled_tasks，认领到期行并分发到注册的处理器。
// 认领是行级状态迁移，多实例部署下同一任务只会被执行一次
type TaskRunner struct {
	taskRepo repository.ScheduledTaskRepository
	handlers map[string]Handler
	cron     *cron.Cron

	claimLimit  int
	execTimeout time.Duration
}

// NewTaskRunner 创建任务执行器
func NewTaskRunner(taskRepo repository.ScheduledTaskRepository) *TaskRunner {
	return &TaskRunner{
		taskRepo:    taskRepo,
		handlers:    make(map[string]Handler),
		cron:        cron.New(cron.WithSeconds()),
		claimLimit:  50,
		execTimeout: 5 * time.Minute,
	}
}

// Register 注册任务类型的处理器
func (r *TaskRunner) Register(taskType string, handler Handler) {
	r.handlers[taskType] = handler
}

// Start 启动轮询
func (r *TaskRunner) Start() {
	// 每秒扫一次到期任务
	_, err := r.cron.AddFunc("* * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.execTimeout)
		defer cancel()
		r.tick(ctx)
	})
	if err != nil {
		log.Printf("[TaskRunner] 定时任务启动失败: %v", err)
		return
	}
	r.cron.Start()
	log.Println("[TaskRunner] 已启动 (每秒轮询)")
}

// Stop 停止轮询，等待在跑的任务结束
func (r *TaskRunner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("[TaskRunner] 已停止")
}

// tick 认领并执行一轮到期任务
func (r *TaskRunner) tick(ctx context.Context) {
	claimed, err := r.taskRepo.ClaimDue(ctx, time.Now(), r.claimLimit)
	if err != nil {
		log.Printf("[TaskRunner] 认领到期任务失败: %v", err)
		return
	}
	for i := range claimed {
		r.execute(ctx, &claimed[i])
	}
}

// execute 分发单个任务，执行结果回写任务行
func (r *TaskRunner) execute(ctx context.Context, task *model.ScheduledTask) {
	handler, ok := r.handlers[task.TaskType]
	if !ok {
		log.Printf("[TaskRunner] 任务 %d 类型 %s 无注册处理器", task.ID, task.TaskType)
		if err := r.taskRepo.MarkFailed(ctx, task.ID, "无注册处理器"); err != nil {
			log.Printf("[TaskRunner] 任务 %d 标记失败出错: %v", task.ID, err)
		}
		return
	}

	if err := handler(ctx, task); err != nil {
		log.Printf("[TaskRunner] 任务 %d (%s) 执行失败: %v", task.ID, task.TaskType, err)
		if markErr := r.taskRepo.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			log.Printf("[TaskRunner] 任务 %d 标记失败出错: %v", task.ID, markErr)
		}
		return
	}
	if err := r.taskRepo.MarkDone(ctx, task.ID); err != nil {
		log.Printf("[TaskRunner] 任务 %d 标记完成出错: %v", task.ID, err)
	}
}
