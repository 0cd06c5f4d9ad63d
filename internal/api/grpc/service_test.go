package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"research-agent/internal/agent"
)

type fakeAsker struct {
	answer string
	err    error
}

func (f *fakeAsker) Run(_ context.Context, _ string) (*agent.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{Answer: f.answer}, nil
}

// blockingAsker 阻塞到 ctx 结束
type blockingAsker struct{}

func (blockingAsker) Run(ctx context.Context, _ string) (*agent.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func dial(t *testing.T, asker Asker, opts ...ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewServer(asker, opts...).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAsk_Success(t *testing.T) {
	conn := dial(t, &fakeAsker{answer: "Paris."})
	answer, err := Ask(context.Background(), conn, "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	conn := dial(t, &fakeAsker{answer: "unused"})
	_, err := Ask(context.Background(), conn, "  ")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, err.Error(), "Question cannot be empty")
}

func TestAsk_AgentFailure(t *testing.T) {
	conn := dial(t, &fakeAsker{err: errors.New("iteration budget exhausted")})
	_, err := Ask(context.Background(), conn, "q")
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, err.Error(), "Agent error: iteration budget exhausted")
}

func TestAsk_ServerTimeout(t *testing.T) {
	conn := dial(t, blockingAsker{}, WithTimeout(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	_, err := Ask(ctx, conn, "slow question")
	require.Error(t, err)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	assert.Contains(t, err.Error(), "Agent error:")
	assert.Less(t, time.Since(start), 4*time.Second)
}
