package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// second call is a no-op
	require.NoError(t, Register(reg))

	IncInstall(ResultOK)
	IncInstall(ResultError)
	ObserveInstallDuration(2.5)
	IncLaunch("direct")
	IncEarlyExit()
	IncClose("tracked")
	SetTracked(2)
	SetProfileMemory("work", 1024)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	want := map[string]bool{
		"librebrowser_engine_installs_total":           false,
		"librebrowser_engine_install_duration_seconds": false,
		"librebrowser_profile_launches_total":          false,
		"librebrowser_profile_early_exits_total":       false,
		"librebrowser_profile_closes_total":            false,
		"librebrowser_profile_tracked":                 false,
		"librebrowser_profile_memory_rss_bytes":        false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
			assert.NotEmpty(t, mf.GetMetric(), mf.GetName())
		}
	}
	for n, ok := range want {
		assert.True(t, ok, "missing metric %s", n)
	}

	ClearProfileMemory("work")
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(false) })
	assert.NotPanics(t, func() {
		IncInstall(ResultOK)
		IncLaunch("bundle")
		SetTracked(1)
		ClearProfileMemory("x")
	})
}

func TestHandlerForServesMetrics(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	IncLaunch("direct")

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), `librebrowser_profile_launches_total{strategy="direct"}`))
}

func TestSampleSelf(t *testing.T) {
	u, err := Sample(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.EqualValues(t, os.Getpid(), u.PID)
	assert.Greater(t, u.MemoryRSS, uint64(0))
}
