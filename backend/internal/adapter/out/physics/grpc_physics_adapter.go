package physics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"x-fields/backend/internal/transport"
	"x-fields/backend/internal/world"
)

var ErrEmptyDescription = errors.New("world sync: changed response without description")

// GRPCWorldMirror зеркало удаленного мира: получает описание мира по gRPC
// (WorldSync), загружает его в локальный менеджер и отдает через адаптер мира
type GRPCWorldMirror struct {
	*WorldAreaAdapter

	client transport.WorldSyncClient
	conn   *grpc.ClientConn

	mu       sync.Mutex
	revision uint64
	synced   bool

	logger *log.Logger
}

// NewGRPCWorldMirror подключается к серверу WorldSync и выполняет первую синхронизацию
func NewGRPCWorldMirror(ctx context.Context, address string, logger *log.Logger) (*GRPCWorldMirror, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к серверу мира: %w", err)
	}

	mirror := NewGRPCWorldMirrorWithClient(transport.NewWorldSyncClient(conn), logger)
	mirror.conn = conn

	if _, err := mirror.Sync(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	mirror.logger.Printf("[WorldMirror] Подключено к серверу мира: %s", address)
	return mirror, nil
}

// NewGRPCWorldMirrorWithClient создает зеркало поверх готового клиента
func NewGRPCWorldMirrorWithClient(client transport.WorldSyncClient, logger *log.Logger) *GRPCWorldMirror {
	if logger == nil {
		logger = log.Default()
	}
	return &GRPCWorldMirror{
		WorldAreaAdapter: NewWorldAreaAdapter(world.NewManager(logger)),
		client:           client,
		logger:           logger,
	}
}

// Sync запрашивает описание мира и перезагружает локальную копию только при
// смене удаленной ревизии. Возвращает true, если мир перезагружен.
func (m *GRPCWorldMirror) Sync(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &transport.DescribeRequest{}
	if m.synced {
		req.KnownRevision = m.revision
	}

	resp, err := m.client.Describe(ctx, req)
	if err != nil {
		return false, fmt.Errorf("ошибка при получении описания мира: %w", err)
	}
	if !resp.Changed {
		return false, nil
	}
	if resp.Description == nil {
		return false, ErrEmptyDescription
	}

	if err := m.World().Load(*resp.Description); err != nil {
		return false, fmt.Errorf("ошибка при загрузке описания мира: %w", err)
	}

	m.logger.Printf("[WorldMirror] Мир обновлен: ревизия %d -> %d", m.revision, resp.Revision)
	m.revision, m.synced = resp.Revision, true
	return true, nil
}

// RemoteRevision возвращает ревизию удаленного мира последней синхронизации
func (m *GRPCWorldMirror) RemoteRevision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

// Close закрывает соединение с сервером
func (m *GRPCWorldMirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}
