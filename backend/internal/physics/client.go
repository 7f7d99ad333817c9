package physics

import (
	"context"
	"log"
	"time"
)

// Syncer источник физического мира, который нужно периодически синхронизировать
type Syncer interface {
	Sync(ctx context.Context) (bool, error)
}

// SyncClient периодически синхронизирует зеркало удаленного мира
type SyncClient struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	onChange func()
}

// NewSyncClient создает клиента синхронизации. onChange вызывается после
// каждой перезагрузки мира и может быть nil.
func NewSyncClient(syncer Syncer, interval time.Duration, onChange func(), logger *log.Logger) *SyncClient {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = DefaultEnvironConfig().MirrorSyncInterval
	}
	return &SyncClient{
		syncer:   syncer,
		interval: interval,
		timeout:  interval,
		logger:   logger,
		onChange: onChange,
	}
}

// SyncOnce выполняет одну синхронизацию с таймаутом в один период
func (c *SyncClient) SyncOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	changed, err := c.syncer.Sync(ctx)
	if err != nil {
		c.logger.Printf("[SyncClient] Ошибка синхронизации мира: %v", err)
		return false
	}
	if changed && c.onChange != nil {
		c.onChange()
	}
	return changed
}

// Run синхронизирует мир до отмены контекста
func (c *SyncClient) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Printf("[SyncClient] Синхронизация мира каждые %v", c.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SyncOnce(ctx)
		}
	}
}
