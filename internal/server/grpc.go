package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/prompts"
)

const ConsoleServiceName = "elsai.console.v1.ConsoleService"

// ConsoleServer is the gRPC console. Requests and replies are
// google.protobuf.Struct so no generated code is needed on either side.
//
//	Extract   {extractor, file_name, content (base64)} -> {result}
//	GetPrompt {api_key, project_id, server_url, environment, name} -> {prompt}
//	ListBackends {} -> {backends}
type ConsoleServer interface {
	Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetPrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListBackends(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryMethod(name string, call func(ConsoleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	full := "/" + ConsoleServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConsoleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ConsoleServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ConsoleServiceDesc = grpc.ServiceDesc{
	ServiceName: ConsoleServiceName,
	HandlerType: (*ConsoleServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Extract", ConsoleServer.Extract),
		unaryMethod("GetPrompt", ConsoleServer.GetPrompt),
		unaryMethod("ListBackends", ConsoleServer.ListBackends),
	},
	Streams: []grpc.StreamDesc{},
	// no .proto descriptor is registered; reflection lists the service but cannot describe it
	Metadata: "",
}

// ConsoleClient calls a ConsoleServer.
type ConsoleClient struct {
	cc grpc.ClientConnInterface
}

func NewConsoleClient(cc grpc.ClientConnInterface) *ConsoleClient {
	return &ConsoleClient{cc: cc}
}

func (c *ConsoleClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ConsoleServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConsoleClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Extract", in, opts...)
}

func (c *ConsoleClient) GetPrompt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetPrompt", in, opts...)
}

func (c *ConsoleClient) ListBackends(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "ListBackends", in, opts...)
}

// ConsoleService implements ConsoleServer over the same components as the HTTP surface.
type ConsoleService struct {
	deps   Deps
	logger *slog.Logger
}

func NewConsoleService(deps Deps, logger *slog.Logger) *ConsoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleService{deps: deps.withDefaults(logger), logger: logger}
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func (s *ConsoleService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := constants.ParseBackend(str(req, "extractor"))
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	name := str(req, "file_name")
	content, err := base64.StdEncoding.DecodeString(str(req, "content"))
	if err != nil {
		return nil, common.InvalidArgumentError("content must be base64")
	}

	file, err := s.deps.Stager.Stage(ctx, name, bytes.NewReader(content))
	if err != nil {
		return nil, common.GRPCError(err)
	}
	res, err := s.deps.Dispatcher.Dispatch(ctx, b, file)
	if err != nil {
		return nil, common.GRPCError(err)
	}
	return toStruct(map[string]any{"status": statusOK, "result": res})
}

func (s *ConsoleService) GetPrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.deps.Prompts.Fetch(ctx, prompts.Request{
		APIKey:      str(req, "api_key"),
		ProjectID:   str(req, "project_id"),
		ServerURL:   str(req, "server_url"),
		Environment: str(req, "environment"),
		Name:        str(req, "name"),
	})
	if err != nil {
		return nil, common.GRPCError(err)
	}
	return toStruct(map[string]any{"status": statusOK, "prompt": p})
}

func (s *ConsoleService) ListBackends(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"backends": s.deps.Dispatcher.Backends()})
}

// toStruct converts v through its JSON form, so json tags name the fields.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

// unaryLogger gives each call a request id and logs its outcome.
func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				id = v[0]
			}
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		l := logger.With("req_id", id)
		ctx = common.WithLogger(common.WithRequestID(ctx, id), l)

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			l.Warn("grpc.request", append(attrs, "error", err)...)
		} else {
			l.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}

// NewGRPCServer registers the console, health and reflection services.
// maxUpload sizes the receive limit so a base64 upload of that size fits.
func NewGRPCServer(deps Deps, maxUpload int64, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	maxRecv := int(maxUpload/3*4) + multipartOverhead
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxRecv),
		grpc.ChainUnaryInterceptor(unaryLogger(logger)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ConsoleServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)

	srv.RegisterService(&ConsoleServiceDesc, NewConsoleService(deps, logger))
	return srv, hs
}
