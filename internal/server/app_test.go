package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = ""
	c.SessionStore = config.SessionStoreMemory
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.MetricsAddr = ""
	c.LogLevel = "error"
	return c
}

func TestNewApp_MemoryStores(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, app.accounts)
	require.NotNil(t, app.tokens)

	res, err := app.accounts.Registration(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Account.Email)
}

func TestInitStores_Selection(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		check   func(t *testing.T, sr sessions.Repository)
	}{
		{
			name: "memory",
			check: func(t *testing.T, sr sessions.Repository) {
				_, ok := sr.(*sessions.InMemoryRepository)
				assert.True(t, ok)
			},
		},
		{
			name: "redis",
			mutate: func(c *config.Config) {
				c.SessionStore = config.SessionStoreRedis
				c.RedisURL = "redis://" + mr.Addr() + "/0"
			},
			check: func(t *testing.T, sr sessions.Repository) {
				_, ok := sr.(*sessions.RedisRepository)
				assert.True(t, ok)
			},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.SessionStore = config.SessionStorePostgres },
			wantErr: true,
		},
		{
			name:    "unknown",
			mutate:  func(c *config.Config) { c.SessionStore = "etcd" },
			wantErr: true,
		},
		{
			name: "redis unreachable",
			mutate: func(c *config.Config) {
				c.SessionStore = config.SessionStoreRedis
				c.RedisURL = "redis://127.0.0.1:1/0"
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := memoryConfig()
			if tc.mutate != nil {
				tc.mutate(c)
			}
			app, err := NewApp(context.Background(), c)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer app.close()

			ar, sr, err := app.initStores(context.Background())
			require.NoError(t, err)
			_, ok := ar.(*accounts.InMemoryRepository)
			assert.True(t, ok)
			tc.check(t, sr)
		})
	}
}

func TestInitNotifier(t *testing.T) {
	c := memoryConfig()
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	n, err := app.initNotifier(context.Background())
	require.NoError(t, err)
	_, ok := n.(*notify.LogNotifier)
	assert.True(t, ok)

	c.S3Bucket = "outbox"
	n, err = app.initNotifier(context.Background())
	require.NoError(t, err)
	_, ok = n.(*notify.S3Notifier)
	assert.True(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
