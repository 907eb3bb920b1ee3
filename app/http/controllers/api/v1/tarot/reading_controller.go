// Package tarot 解读的保存、查看和分享接口
package tarot

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"tarotshare/app/requests"
	"tarotshare/pkg/identity"
	"tarotshare/pkg/mailer"
	"tarotshare/pkg/queue"
	"tarotshare/pkg/readingstore"
	"tarotshare/pkg/response"
)

// 对外统一的「找不到」提示，不区分不存在、已过期和非公开
const msgNotAvailable = "reading no longer available"

// ShareQueue 异步分享使用的队列，nil 时同步发送
type ShareQueue interface {
	PushTask(ctx context.Context, task *queue.ShareTask) error
	GetTaskProgress(ctx context.Context, taskID string) (*queue.TaskProgress, error)
}

type ReadingController struct {
	store  *readingstore.Store
	sharer queue.ShareHandler
	queue  ShareQueue
	ids    identity.Generator
}

func NewReadingController(store *readingstore.Store, sharer queue.ShareHandler, q ShareQueue) *ReadingController {
	return &ReadingController{
		store:  store,
		sharer: sharer,
		queue:  q,
		ids:    identity.NewGenerator(),
	}
}

// Store 保存解读
func (rc *ReadingController) Store(c *gin.Context) {
	request, err := requests.ValidateSaveReading(c)
	if err != nil {
		abortWithRequestError(c, err)
		return
	}

	id, err := rc.store.Save(c.Request.Context(), request.Draft())
	if err != nil {
		abortWithStoreError(c, err)
		return
	}

	response.Created(c, gin.H{
		"id":        id,
		"share_url": rc.store.ShareURL(id),
	}, "解读已保存")
}

// Show 查询解读
func (rc *ReadingController) Show(c *gin.Context) {
	r, err := rc.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	if r == nil {
		response.Abort404(c, msgNotAvailable)
		return
	}
	response.Data(c, r)
}

// View 查看次数加一
func (rc *ReadingController) View(c *gin.Context) {
	id := c.Param("id")
	response.Data(c, gin.H{
		"id":      id,
		"updated": rc.store.IncrementViewCount(c.Request.Context(), id),
	})
}

// Share 分享视图
func (rc *ReadingController) Share(c *gin.Context) {
	rc.renderShareable(c, c.Param("id"), false)
}

// SharePage 分享链接落地：查询、计数并返回分享视图
// GET /view-reading?id=<id>
func (rc *ReadingController) SharePage(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.Abort400(c, "缺少解读 ID")
		return
	}
	rc.renderShareable(c, id, true)
}

func (rc *ReadingController) renderShareable(c *gin.Context, id string, countView bool) {
	view, err := rc.store.GenerateShareableData(c.Request.Context(), id)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	if view == nil {
		response.Abort404(c, msgNotAvailable)
		return
	}
	if countView && rc.store.IncrementViewCount(c.Request.Context(), id) {
		view.ViewCount++
	}
	response.Data(c, view)
}

// Email 通过邮件分享解读
// 启用队列时异步发送并返回任务 ID，否则同步发送
func (rc *ReadingController) Email(c *gin.Context) {
	request, err := requests.ValidateShareEmail(c)
	if err != nil {
		abortWithRequestError(c, err)
		return
	}

	shareReq := mailer.ShareRequest{
		ReadingID:  c.Param("id"),
		To:         request.To,
		FriendName: request.FriendName,
		Note:       request.Message,
	}

	if rc.queue == nil {
		msg, err := rc.sharer.Share(c.Request.Context(), shareReq)
		if err != nil {
			abortWithShareError(c, err)
			return
		}
		response.Data(c, gin.H{
			"sent":      true,
			"to":        msg.To,
			"share_url": msg.ShareURL,
		})
		return
	}

	// 入队前先确认解读可见，避免排队后才发现链接无效
	r, err := rc.store.Get(c.Request.Context(), shareReq.ReadingID)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	if r == nil {
		response.Abort404(c, msgNotAvailable)
		return
	}

	task := &queue.ShareTask{
		ID:         rc.ids.NewID(),
		ReadingID:  shareReq.ReadingID,
		To:         shareReq.To,
		FriendName: shareReq.FriendName,
		Note:       shareReq.Note,
	}
	if err := rc.queue.PushTask(c.Request.Context(), task); err != nil {
		response.ServiceUnavailable(c, err, "任务入队失败")
		return
	}

	response.Accepted(c, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
	}, "分享邮件已加入发送队列")
}

// ShareStatus 查询分享任务进度
func (rc *ReadingController) ShareStatus(c *gin.Context) {
	if rc.queue == nil {
		response.Abort404(c, "未启用分享队列")
		return
	}

	progress, err := rc.queue.GetTaskProgress(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		response.ServerError(c, err, "获取任务进度失败")
		return
	}
	if progress == nil {
		response.Abort404(c, "任务不存在")
		return
	}
	response.Data(c, progress)
}

// Stats 解读统计
func (rc *ReadingController) Stats(c *gin.Context) {
	response.Data(c, rc.store.Stats(c.Request.Context()))
}

// abortWithRequestError 请求解析或表单验证失败
func abortWithRequestError(c *gin.Context, err error) {
	var ve requests.ValidationError
	if errors.As(err, &ve) {
		response.ValidationError(c, ve.Errors)
		return
	}
	response.BadRequest(c, err, "请求参数验证失败")
}

// abortWithStoreError 解读存储返回的错误
func abortWithStoreError(c *gin.Context, err error) {
	var ve *readingstore.ValidationError
	switch {
	case errors.As(err, &ve):
		response.ValidationError(c, map[string][]string{ve.Field: {ve.Message}})
	case errors.Is(err, readingstore.ErrLocalPersistence):
		response.ServiceUnavailable(c, err)
	default:
		response.ServerError(c, err)
	}
}

// abortWithShareError 同步发送分享邮件失败
func abortWithShareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mailer.ErrReadingNotFound):
		response.Abort404(c, msgNotAvailable)
	case errors.Is(err, mailer.ErrInvalidAddress):
		response.ValidationError(c, map[string][]string{"to": {err.Error()}})
	case mailer.Permanent(err):
		abortWithStoreError(c, err)
	default:
		response.ServiceUnavailable(c, err, "邮件发送失败，请稍后重试")
	}
}
