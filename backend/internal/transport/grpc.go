package transport

import (
	"context"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"x-fields/backend/internal/world"
)

const (
	worldSyncServiceName    = "xfields.WorldSync"
	worldSyncDescribeMethod = "/" + worldSyncServiceName + "/Describe"
)

// DescribeRequest запрос описания мира. Если KnownRevision совпадает с
// текущей ревизией, описание не передается. На проводе это
// wrapperspb.UInt64Value.
type DescribeRequest struct {
	KnownRevision uint64
}

// DescribeResponse ответ с описанием мира. На проводе это
// wrapperspb.BytesValue с сообщением из MarshalWire.
type DescribeResponse struct {
	Revision    uint64
	Changed     bool
	Description *world.Description
}

// WorldSyncServer серверная часть сервиса синхронизации мира
type WorldSyncServer interface {
	Describe(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error)
}

func worldSyncDescribeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	describe := func(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.BytesValue, error) {
		resp, err := srv.(WorldSyncServer).Describe(ctx, &DescribeRequest{KnownRevision: req.GetValue()})
		if err != nil {
			return nil, err
		}
		return wrapperspb.Bytes(resp.MarshalWire()), nil
	}
	if interceptor == nil {
		return describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: worldSyncDescribeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return describe(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// WorldSyncServiceDesc описание gRPC-сервиса WorldSync
var WorldSyncServiceDesc = grpc.ServiceDesc{
	ServiceName: worldSyncServiceName,
	HandlerType: (*WorldSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Describe",
			Handler:    worldSyncDescribeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "world_sync",
}

// RegisterWorldSyncServer регистрирует реализацию сервиса на сервере
func RegisterWorldSyncServer(s grpc.ServiceRegistrar, srv WorldSyncServer) {
	s.RegisterService(&WorldSyncServiceDesc, srv)
}

// worldSyncClient клиент WorldSync поверх соединения gRPC
type worldSyncClient struct {
	cc grpc.ClientConnInterface
}

// NewWorldSyncClient создает клиента поверх соединения
func NewWorldSyncClient(cc grpc.ClientConnInterface) WorldSyncClient {
	return &worldSyncClient{cc: cc}
}

func (c *worldSyncClient) Describe(ctx context.Context, req *DescribeRequest, opts ...grpc.CallOption) (*DescribeResponse, error) {
	out := new(wrapperspb.BytesValue)
	opts = append([]grpc.CallOption{grpc.UseCompressor(CompressorName)}, opts...)
	if err := c.cc.Invoke(ctx, worldSyncDescribeMethod, wrapperspb.UInt64(req.KnownRevision), out, opts...); err != nil {
		return nil, err
	}

	resp := new(DescribeResponse)
	if err := resp.UnmarshalWire(out.GetValue()); err != nil {
		return nil, err
	}
	return resp, nil
}

// WorldSyncService отдает описание локального мира
type WorldSyncService struct {
	world  *world.Manager
	logger *log.Logger
}

// NewWorldSyncService создает сервис синхронизации поверх менеджера мира
func NewWorldSyncService(m *world.Manager, logger *log.Logger) *WorldSyncService {
	if logger == nil {
		logger = log.Default()
	}
	return &WorldSyncService{world: m, logger: logger}
}

func (s *WorldSyncService) Describe(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	revision := s.world.Revision()
	if req.KnownRevision != 0 && req.KnownRevision == revision {
		return &DescribeResponse{Revision: revision}, nil
	}

	desc, err := s.world.Describe()
	if err != nil {
		s.logger.Printf("[WorldSync] Ошибка описания мира: %v", err)
		return nil, fmt.Errorf("describe world: %w", err)
	}
	return &DescribeResponse{Revision: desc.Revision, Changed: true, Description: &desc}, nil
}

// ServeWorldSync запускает gRPC-сервер WorldSync на слушателе в отдельной
// горутине. Канал получает результат Serve после остановки.
func ServeWorldSync(lis net.Listener, m *world.Manager, logger *log.Logger) (*grpc.Server, <-chan error) {
	if logger == nil {
		logger = log.Default()
	}
	server := grpc.NewServer()
	RegisterWorldSyncServer(server, NewWorldSyncService(m, logger))

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[WorldSync] gRPC сервер слушает %s", lis.Addr())
		errCh <- server.Serve(lis)
	}()
	return server, errCh
}
