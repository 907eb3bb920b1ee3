package tarot

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tarotshare/pkg/readingstore"
	"tarotshare/pkg/response"
)

// MaxImportSize 导入数据的大小上限
const MaxImportSize = 8 << 20

// AdminController 运维接口，只在 app.admin_routes 开启时注册
type AdminController struct {
	store *readingstore.Store
}

func NewAdminController(store *readingstore.Store) *AdminController {
	return &AdminController{store: store}
}

// Cleanup 立即清理过期解读
func (ac *AdminController) Cleanup(c *gin.Context) {
	n, err := ac.store.CleanupExpired(c.Request.Context())
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	response.Data(c, gin.H{"removed": n})
}

// Export 下载本地镜像
func (ac *AdminController) Export(c *gin.Context) {
	data, err := ac.store.Export()
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	filename := fmt.Sprintf("readings-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Import 用上传的 JSON 替换本地镜像
func (ac *AdminController) Import(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImportSize+1))
	if err != nil {
		response.BadRequest(c, err)
		return
	}
	if len(data) > MaxImportSize {
		response.Abort400(c, "导入数据过大")
		return
	}

	n, err := ac.store.Import(data)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}
	response.Data(c, gin.H{"imported": n})
}

// Clear 清空所有解读
func (ac *AdminController) Clear(c *gin.Context) {
	if err := ac.store.ClearAll(c.Request.Context()); err != nil {
		abortWithStoreError(c, err)
		return
	}
	response.Data(c, gin.H{"cleared": true})
}
