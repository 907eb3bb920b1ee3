package readingstore

import (
	"context"
	"fmt"
	"time"

	"tarotshare/pkg/logger"
)

// StartJanitor 定期清理过期解读，ctx 取消后退出
// interval 小于等于 0 时不启动
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.InfoString("ReadingStore", "Janitor", "定期清理已停止")
				return
			case <-ticker.C:
				n, err := s.CleanupExpired(ctx)
				if err != nil {
					logger.ErrorString("ReadingStore", "Janitor", err.Error())
					continue
				}
				if n > 0 {
					logger.InfoString("ReadingStore", "Janitor", fmt.Sprintf("清理了 %d 条过期解读", n))
				}
			}
		}
	}()
}
