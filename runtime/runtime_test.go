package runtime

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/registry"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Calculator is hosted on the server side; the client only ever holds a
// proxy for it.
type Calculator interface {
	Add(a, b int) int
	Session() Session
}

type Session interface {
	Token() string
}

type calculatorImpl struct{}

func (calculatorImpl) Add(a, b int) int   { return a + b }
func (calculatorImpl) Session() Session   { return sessionImpl{token: "abc123"} }

type sessionImpl struct{ token string }

func (s sessionImpl) Token() string { return s.token }

type calculatorProxy struct{ *proxy.Handle }

func (p *calculatorProxy) Add(a, b int) int {
	result, err := p.Invoke(context.Background(), "Add", a, b)
	if err != nil {
		return 0
	}
	n, _ := result.(int)
	return n
}

func (p *calculatorProxy) Session() Session {
	result, err := p.Invoke(context.Background(), "Session")
	if err != nil {
		return nil
	}
	s, _ := result.(Session)
	return s
}

type sessionProxy struct{ *proxy.Handle }

func (p *sessionProxy) Token() string {
	result, err := p.Invoke(context.Background(), "Token")
	if err != nil {
		return ""
	}
	s, _ := result.(string)
	return s
}

func buildServerRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(DefaultConfig())
	_, err := RegisterRemotable[Calculator](rt, nil, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	require.NoError(t, err)
	return rt
}

func buildClientRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(DefaultConfig())
	_, err := RegisterRemotable[Calculator](rt, nil, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	require.NoError(t, err)
	_, err = RegisterRemotable[Session](rt, nil, func(h *proxy.Handle) Session { return &sessionProxy{h} })
	require.NoError(t, err)
	return rt
}

func wireRuntimes(t *testing.T) (server, client *Runtime, clientConn transport.Connection) {
	t.Helper()
	server = buildServerRuntime(t)
	client = buildClientRuntime(t)

	mem := transport.NewMemory(nil)
	clientConn, _ = mem.Pair(NewHandler(client), NewHandler(server))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.ShutdownExecutor(ctx)
		client.ShutdownExecutor(ctx)
	})
	return server, client, clientConn
}

func TestEndToEndBlockingCallThroughMemoryTransport(t *testing.T) {
	server, client, clientConn := wireRuntimes(t)

	target := calculatorImpl{}
	objectID := server.Host(target)

	calc := CreateRemote(client, clientConn, objectID, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	assert.Equal(t, 7, calc.Add(3, 4))
}

func TestEndToEndRemoteReturnValueIsItselfAProxy(t *testing.T) {
	server, client, clientConn := wireRuntimes(t)

	target := calculatorImpl{}
	objectID := server.Host(target)

	calc := CreateRemote(client, clientConn, objectID, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	session := calc.Session()
	require.NotNil(t, session)
	assert.Equal(t, "abc123", session.Token())
}

func TestIsRegisteredReflectsRegistrations(t *testing.T) {
	rt := New(DefaultConfig())
	assert.False(t, IsRegistered[Calculator](rt))

	_, err := RegisterRemotable[Calculator](rt, nil, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	require.NoError(t, err)
	assert.True(t, IsRegistered[Calculator](rt))
}

type slowCalculator interface {
	Slow(a, b int) int
}

type slowCalculatorImpl struct{ delay time.Duration }

func (s slowCalculatorImpl) Slow(a, b int) int {
	time.Sleep(s.delay)
	return a + b
}

type slowCalculatorProxy struct{ *proxy.Handle }

func (p *slowCalculatorProxy) Slow(a, b int) int {
	result, err := p.Invoke(context.Background(), "Slow", a, b)
	if err != nil {
		return 0
	}
	n, _ := result.(int)
	return n
}

func TestEndToEndNonBlockingCallThenGetResult(t *testing.T) {
	server := New(DefaultConfig())
	client := New(DefaultConfig())

	policies := map[string]registry.CallPolicy{
		"Slow": {NonBlocking: true, ResponseTimeout: 10 * time.Millisecond},
	}
	_, err := RegisterRemotable[slowCalculator](server, policies, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })
	require.NoError(t, err)
	_, err = RegisterRemotable[slowCalculator](client, policies, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })
	require.NoError(t, err)

	mem := transport.NewMemory(nil)
	clientConn, _ := mem.Pair(NewHandler(client), NewHandler(server))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.ShutdownExecutor(ctx)
		client.ShutdownExecutor(ctx)
	})

	target := slowCalculatorImpl{delay: 100 * time.Millisecond}
	objectID := server.Host(target)

	calc := CreateRemote(client, clientConn, objectID, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })

	immediate := calc.Slow(3, 4)
	assert.Equal(t, 0, immediate, "a non-blocking call returns the zero value immediately")

	tid, ok := client.LastTransactionID()
	require.True(t, ok)

	result, err, found := client.GetResult(context.Background(), tid, 500*time.Millisecond)
	require.True(t, found)
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}

func TestEndToEndNonBlockingCallThenGetLastResult(t *testing.T) {
	server := New(DefaultConfig())
	client := New(DefaultConfig())

	assert.False(t, client.HasLastResult())

	policies := map[string]registry.CallPolicy{
		"Slow": {NonBlocking: true, ResponseTimeout: 10 * time.Millisecond},
	}
	_, err := RegisterRemotable[slowCalculator](server, policies, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })
	require.NoError(t, err)
	_, err = RegisterRemotable[slowCalculator](client, policies, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })
	require.NoError(t, err)

	mem := transport.NewMemory(nil)
	clientConn, _ := mem.Pair(NewHandler(client), NewHandler(server))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.ShutdownExecutor(ctx)
		client.ShutdownExecutor(ctx)
	})

	target := slowCalculatorImpl{delay: 50 * time.Millisecond}
	objectID := server.Host(target)
	calc := CreateRemote(client, clientConn, objectID, func(h *proxy.Handle) slowCalculator { return &slowCalculatorProxy{h} })

	calc.Slow(1, 2)
	assert.True(t, client.HasLastResult())

	result, err, found := client.GetLastResult(context.Background(), 500*time.Millisecond)
	require.True(t, found)
	require.NoError(t, err)
	assert.Equal(t, 3, result)

	// a second retrieval returns the cached outcome without waiting again.
	result, err, found = client.GetLastResult(context.Background(), 0)
	require.True(t, found)
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestHostWithIDThenLookupViaRegistryPolicy(t *testing.T) {
	rt := New(DefaultConfig())
	_, err := RegisterRemotable[Calculator](rt, map[string]registry.CallPolicy{
		"Add": {ResponseTimeout: time.Second},
	}, func(h *proxy.Handle) Calculator { return &calculatorProxy{h} })
	require.NoError(t, err)

	md, err := rt.registry.MethodByName(reflect.TypeOf((*Calculator)(nil)).Elem(), "Add")
	require.NoError(t, err)
	assert.Equal(t, time.Second, md.Policy.ResponseTimeout)
}
