package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/types"
	"github.com/yeisme/photovault/pkg/middleware"
	"github.com/yeisme/photovault/pkg/scheduler"
)

// SchedulerJobsResponse 任务列表.
type SchedulerJobsResponse struct {
	Jobs    []scheduler.JobInfo `json:"jobs"`
	Waiting int                 `json:"waiting"`
}

func getScheduler(c *gin.Context) *scheduler.Scheduler {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "scheduler not initialized"})
	}

	return sched
}

// SchedulerJobs 返回所有调度器任务信息.
//
//	@Summary	定时任务列表
//	@Tags		定时任务
//	@Produce	json
//	@Param		X-Role	header		string	true	"operator 或 admin"
//	@Success	200		{object}	SchedulerJobsResponse
//	@Router		/api/v1/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	c.JSON(http.StatusOK, SchedulerJobsResponse{Jobs: sched.GetJobInfos(), Waiting: sched.JobsWaitingInQueue()})
}

// SchedulerJob 返回单个任务信息.
//
//	@Summary	定时任务详情
//	@Tags		定时任务
//	@Produce	json
//	@Param		X-Role	header		string	true	"operator 或 admin"
//	@Param		name	path		string	true	"任务名称"
//	@Success	200		{object}	scheduler.JobInfo
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/v1/scheduler/jobs/{name} [get]
func SchedulerJob(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	info, err := sched.GetJobInfoByName(c.Param("name"))
	if err != nil {
		writeError(c, &errs.NotFound{Resource: "job", ID: c.Param("name")})
		return
	}

	c.JSON(http.StatusOK, info)
}

// SchedulerRunJob 立即执行一次任务.
//
//	@Summary	立即执行任务
//	@Tags		定时任务
//	@Produce	json
//	@Param		X-Role	header		string	true	"operator 或 admin"
//	@Param		name	path		string	true	"任务名称"
//	@Success	202		{object}	types.AcceptedResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/v1/scheduler/jobs/{name}/run [post]
func SchedulerRunJob(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	if err := sched.RunNow(c.Param("name")); err != nil {
		writeError(c, &errs.NotFound{Resource: "job", ID: c.Param("name")})
		return
	}

	c.JSON(http.StatusAccepted, types.AcceptedResponse{Status: "accepted"})
}

// SchedulerStopJobs 停止所有任务.
//
//	@Summary	停止全部任务
//	@Tags		定时任务
//	@Produce	json
//	@Param		X-Role	header		string	true	"admin"
//	@Success	200		{object}	map[string]string
//	@Router		/api/v1/scheduler/jobs/stop [post]
func SchedulerStopJobs(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	if err := sched.StopJobs(); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "jobs stopped"})
}

// SchedulerRemoveJob 按名称或任务 ID 删除任务.
//
//	@Summary	删除任务
//	@Tags		定时任务
//	@Param		X-Role	header	string	true	"admin"
//	@Param		name	path	string	true	"任务名称或 ID"
//	@Success	204		"已删除"
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/v1/scheduler/jobs/{name} [delete]
func SchedulerRemoveJob(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	ref := c.Param("name")

	var err error
	if id, perr := uuid.Parse(ref); perr == nil {
		err = sched.RemoveJob(id)
	} else {
		err = sched.RemoveJobByName(ref)
	}

	if err != nil {
		writeError(c, &errs.NotFound{Resource: "job", ID: ref})
		return
	}

	c.Status(http.StatusNoContent)
}
