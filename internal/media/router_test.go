package media

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouterConfig() Config {
	return Config{
		UDPPortMin:       20000,
		UDPPortMax:       20100,
		ICEServers:       []string{"stun:stun.l.google.com:19302"},
		VideoBitrateKbps: 1200,
	}
}

func TestNewRouterRejectsBadPortRange(t *testing.T) {
	for _, cfg := range []Config{
		{UDPPortMin: 0, UDPPortMax: 100},
		{UDPPortMin: 20100, UDPPortMax: 20000},
		{UDPPortMin: 20000, UDPPortMax: 70000},
	} {
		_, err := NewRouter(cfg)
		assert.Error(t, err)
	}
}

func TestForwardingContextIsOnePerRoom(t *testing.T) {
	rt, err := NewRouter(testRouterConfig())
	require.NoError(t, err)

	first := rt.ForwardingContext("meeting-1")
	assert.Same(t, first, rt.ForwardingContext("meeting-1"))
	assert.NotSame(t, first, rt.ForwardingContext("meeting-2"))
}

func TestConcurrentFirstCallsYieldOneContext(t *testing.T) {
	rt, err := NewRouter(testRouterConfig())
	require.NoError(t, err)

	const callers = 32
	contexts := make([]*ForwardingContext, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			contexts[i] = rt.ForwardingContext("meeting-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, contexts[0], contexts[i])
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	rt, err := NewRouter(testRouterConfig())
	require.NoError(t, err)

	fctx := rt.ForwardingContext("meeting-1")
	require.NotNil(t, fctx)

	rt.Teardown("meeting-1")
	rt.Teardown("meeting-1")
	rt.Teardown("never-existed")

	// After teardown a new join gets a fresh context.
	assert.NotSame(t, fctx, rt.ForwardingContext("meeting-1"))
	assert.Equal(t, 0, rt.SessionCount())
}

func TestBuildICEServersCarriesCredentials(t *testing.T) {
	servers := buildICEServers(Config{
		ICEServers:    []string{"stun:stun.example.com:3478", "turn:turn.example.com:3478"},
		ICEUsername:   "user",
		ICECredential: "pass",
	})

	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "pass", servers[1].Credential)
}
