package generation

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultRetention      = 30 * 24 * time.Hour
	DefaultRetentionSweep = time.Hour
)

// LogPurger 删除早于 cutoff 的日志
type LogPurger interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}

// RetentionCleaner 定期删除过期的生成日志
type RetentionCleaner struct {
	purger    LogPurger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewRetentionCleaner 创建清理器
func NewRetentionCleaner(purger LogPurger, interval, retention time.Duration) *RetentionCleaner {
	if interval <= 0 {
		interval = DefaultRetentionSweep
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RetentionCleaner{
		purger:    purger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动后台清理 goroutine
func (c *RetentionCleaner) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop 优雅停止清理器
func (c *RetentionCleaner) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}

func (c *RetentionCleaner) run() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.cleanup()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *RetentionCleaner) cleanup() {
	cutoff := c.now().Add(-c.retention)
	rows, err := c.purger.DeleteBefore(cutoff)
	if err != nil {
		log.Errorf("retention cleaner: cleanup failed: %v", err)
		return
	}
	if rows > 0 {
		log.Infof("retention cleaner: deleted %d generation logs older than %v", rows, c.retention)
	}
}
