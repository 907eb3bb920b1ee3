package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tarotshare/bootstrap"
	btsConfig "tarotshare/config"
	"tarotshare/pkg/config"
	"tarotshare/pkg/queue"
	"tarotshare/routes"

	"github.com/gin-gonic/gin"
)

// 加载应用程序的基础配置
func init() {
	// 加载 config 目录下的配置信息
	btsConfig.Initialize()
}

// App 应用程序上下文，用于优雅关闭
type App struct {
	server  *http.Server
	cancel  context.CancelFunc // 停止后台任务（定期清理、远程重连）
	worker  *queue.Worker
	closers []func()
}

func main() {
	// 解析命令行参数
	env := parseFlags()

	// 初始化应用配置
	app, err := setupApplication(env)
	if err != nil {
		log.Fatalf("初始化应用程序失败: %v", err)
	}

	// 启动服务器（包含优雅关闭）
	app.start()
}

// parseFlags 解析命令行参数
// 返回环境配置参数
func parseFlags() string {
	var env string
	flag.StringVar(&env, "env", "", "加载 .env 文件，例如 --env=testing 将加载 .env.testing 文件")
	flag.Parse()
	return env
}

// setupApplication 初始化应用程序所需的各种组件
func setupApplication(env string) (*App, error) {
	// 先初始化配置
	config.InitConfig(env)

	// 然后初始化日志
	bootstrap.SetupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cancel: cancel}

	// 初始化 Redis（可选）
	bootstrap.SetupRedis()

	// 本地镜像和远程存储
	m, mirrorDriver, closeMirror := bootstrap.SetupMirror()
	rs, remoteDriver, closeRemote := bootstrap.SetupRemote(ctx)
	a.closers = append(a.closers, closeRemote, closeMirror)

	// 解读存储
	store := bootstrap.SetupReadingStore(ctx, rs, m)

	// 邮件分享和队列
	sharer := bootstrap.SetupSharer(store)
	queueService, worker := bootstrap.SetupQueue(sharer)
	a.worker = worker

	// 创建并配置 Gin 服务器
	router := setupServer(routes.Dependencies{
		Store:        store,
		Sharer:       sharer,
		Queue:        queueService,
		RemoteDriver: remoteDriver,
		MirrorDriver: mirrorDriver,
		SharePath:    config.GetString("reading.share_path"),
		AdminRoutes:  config.GetBool("app.admin_routes"),
	})

	a.server = &http.Server{
		Addr:              ":" + config.Get("app.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// setupServer 配置并返回 Gin 服务器实例
func setupServer(deps routes.Dependencies) *gin.Engine {
	// 设置 gin 为生产模式
	// 这样可以减少不必要的日志输出，提高性能
	if !config.GetBool("app.debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建一个新的 Gin 引擎实例
	router := gin.New()

	// 设置路由
	bootstrap.SetupRoute(router, deps)

	return router
}

// start 启动服务器并处理优雅关闭
func (a *App) start() {
	// 创建系统信号监听器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("服务器正在启动，监听端口 %s\n", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	<-quit
	log.Println("正在关闭服务器...")

	// 创建一个带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭异常: %v", err)
	}

	// 停止后台任务，再关闭存储连接
	a.cancel()
	if a.worker != nil {
		a.worker.Stop()
	}
	for _, closeFn := range a.closers {
		closeFn()
	}

	log.Println("服务器已成功关闭")
}
