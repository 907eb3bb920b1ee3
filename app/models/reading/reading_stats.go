package reading

import "time"

// Stats 解读统计，字段名与远程 get_reading_stats 函数的返回值一致
type Stats struct {
	TotalReadings     int64 `json:"total_readings"`
	ActiveReadings    int64 `json:"active_readings"`
	ExpiredReadings   int64 `json:"expired_readings"`
	TotalViews        int64 `json:"total_views"`
	ReadingsToday     int64 `json:"readings_today"`
	ReadingsThisWeek  int64 `json:"readings_this_week"`
	ReadingsThisMonth int64 `json:"readings_this_month"`
}

// Window 统计的时间边界
type Window struct {
	Now        time.Time
	StartOfDay time.Time // loc 时区的当日零点
	WeekAgo    time.Time
	MonthAgo   time.Time
}

// NewWindow 计算统计窗口，「本周」「本月」分别为最近 7 天和 30 天
func NewWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return Window{
		Now:        now,
		StartOfDay: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
		WeekAgo:    now.Add(-7 * 24 * time.Hour),
		MonthAgo:   now.Add(-30 * 24 * time.Hour),
	}
}

// ComputeStats 对一组解读做聚合，远程存储不可用时基于本地镜像统计
func ComputeStats(readings []*Reading, now time.Time, loc *time.Location) Stats {
	w := NewWindow(now, loc)

	var stats Stats
	for _, r := range readings {
		stats.TotalReadings++
		if r.IsExpiredAt(now) {
			stats.ExpiredReadings++
		} else {
			stats.ActiveReadings++
		}
		stats.TotalViews += r.ViewCount

		if !r.CreatedAt.Before(w.StartOfDay) {
			stats.ReadingsToday++
		}
		if !r.CreatedAt.Before(w.WeekAgo) {
			stats.ReadingsThisWeek++
		}
		if !r.CreatedAt.Before(w.MonthAgo) {
			stats.ReadingsThisMonth++
		}
	}
	return stats
}
