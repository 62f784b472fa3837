package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/elsai-console/internal/prompts"
)

func dialConsole(t *testing.T, f *fixture) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(f.deps, 1<<20, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func extractReq(t *testing.T, extractor, name, content string) *structpb.Struct {
	return mustStruct(t, map[string]any{
		"extractor": extractor,
		"file_name": name,
		"content":   base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

func TestGRPCExtract(t *testing.T) {
	f := newFixture(t)
	client := NewConsoleClient(dialConsole(t, f))
	ctx := context.Background()

	out, err := client.Extract(ctx, extractReq(t, "llama-parser", "items.csv", "name,qty\napple,3\n"))
	require.NoError(t, err)
	result := out.AsMap()["result"].(map[string]any)
	assert.Equal(t, "table", result["kind"])
	assert.Equal(t, "llama-parser", result["backend"])
	f.assertNoTempFiles(t)
}

func TestGRPCExtractFailures(t *testing.T) {
	f := newFixture(t)
	client := NewConsoleClient(dialConsole(t, f))
	ctx := context.Background()

	_, err := client.Extract(ctx, extractReq(t, "Llama Parser", "sample.pdf", samplePDF))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "Llama Parser currently only supports CSV files")

	_, err = client.Extract(ctx, extractReq(t, "nope", "sample.pdf", samplePDF))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Extract(ctx, extractReq(t, "vision-ai", "notes.txt", "hi"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	f.ex.err = errors.New("connect timeout")
	_, err = client.Extract(ctx, extractReq(t, "aws-textract", "sample.pdf", samplePDF))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "connect timeout")

	assert.Equal(t, 1, f.ex.Calls())
	f.assertNoTempFiles(t)
}

func TestGRPCGetPrompt(t *testing.T) {
	f := newFixture(t)
	client := NewConsoleClient(dialConsole(t, f))
	ctx := context.Background()

	_, err := client.GetPrompt(ctx, mustStruct(t, map[string]any{"project_id": "p"}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, prompts.MissingCredentialsMessage, status.Convert(err).Message())
	assert.Empty(t, f.pc.names)

	out, err := client.GetPrompt(ctx, mustStruct(t, map[string]any{"api_key": "k", "project_id": "p"}))
	require.NoError(t, err)
	p := out.AsMap()["prompt"].(map[string]any)
	assert.Equal(t, map[string]any{"content": "Hello {{name}}", "metadata": map[string]any{"version": float64(2)}}, p["prompt"])
	assert.Equal(t, []string{"sample"}, f.pc.names)
}

func TestGRPCListBackendsAndHealth(t *testing.T) {
	f := newFixture(t)
	conn := dialConsole(t, f)
	ctx := context.Background()

	out, err := NewConsoleClient(conn).ListBackends(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, out.AsMap()["backends"], 5)

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ConsoleServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCReflectionListsServices(t *testing.T) {
	f := newFixture(t)
	conn := dialConsole(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{ListServices: "*"},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		names = append(names, svc.GetName())
	}
	assert.Contains(t, names, ConsoleServiceName)
	assert.Contains(t, names, "grpc.health.v1.Health")
	assert.Empty(t, ConsoleServiceDesc.Metadata)
	require.NoError(t, stream.CloseSend())
}
