package transport

import (
	"context"

	"google.golang.org/grpc"
)

// WorldSyncClient определяет интерфейс для получения описания удаленного мира
type WorldSyncClient interface {
	Describe(ctx context.Context, req *DescribeRequest, opts ...grpc.CallOption) (*DescribeResponse, error)
}
