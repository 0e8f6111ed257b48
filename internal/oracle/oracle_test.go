package oracle

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/robo-predictor/internal/logging"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region helpers
type failingOracle struct{ err error }

func (f failingOracle) Guess(context.Context, predictor.PlanetID) (predictor.Outcome, error) {
	return predictor.Day, f.err
}

// serve starts o on an in-memory listener and returns a connected client.
func serve(t *testing.T, o Oracle) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, o)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClientWithConn(conn)
}

// #endregion helpers

func TestStaticAndTable(t *testing.T) {
	ctx := context.Background()

	got, err := Static(predictor.Day).Guess(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, predictor.Day, got)

	tbl := Table{
		Guesses: map[predictor.PlanetID]predictor.Outcome{1: predictor.Day},
		Default: predictor.Night,
	}
	got, _ = tbl.Guess(ctx, 1)
	assert.Equal(t, predictor.Day, got)
	got, _ = tbl.Guess(ctx, 2)
	assert.Equal(t, predictor.Night, got)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"table.json": `{"default": "day", "guesses": {"18446744073709551615": "night", "7": "day"}}`,
		"table.yaml": "default: day\nguesses:\n  \"18446744073709551615\": night\n  7: day\n",
		"table.toml": "default = \"day\"\n[guesses]\n18446744073709551615 = \"night\"\n7 = \"day\"\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			tbl, err := LoadTable(path)
			require.NoError(t, err)
			assert.Equal(t, predictor.Day, tbl.Default)
			assert.Equal(t, predictor.Night, tbl.Guesses[^predictor.PlanetID(0)])
			assert.Equal(t, predictor.Day, tbl.Guesses[7])
		})
	}
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad_default.json": `{"default": "dusk"}`,
		"bad_id.json":      `{"guesses": {"-3": "day"}}`,
		"bad_value.json":   `{"guesses": {"3": "noon"}}`,
		"table.ini":        `default=day`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadTable(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadTable(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReloadable_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default": "night"}`), 0o644))

	r, err := NewReloadable(path, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Watch(ctx)

	got, err := r.Guess(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, predictor.Night, got)

	// A broken file keeps the previous table.
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"default": "night", "guesses": {"5": "day"}}`), 0o644))

	require.Eventually(t, func() bool {
		o, _ := r.Guess(ctx, 5)
		return o == predictor.Day
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWithFallback(t *testing.T) {
	o := WithFallback(failingOracle{err: errors.New("down")}, predictor.Night, logging.Nop())
	got, err := o.Guess(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, predictor.Night, got)

	o = WithFallback(Static(predictor.Day), predictor.Night, logging.Nop())
	got, _ = o.Guess(context.Background(), 5)
	assert.Equal(t, predictor.Day, got)
}

func TestGRPC_Guess(t *testing.T) {
	tbl := Table{
		Guesses: map[predictor.PlanetID]predictor.Outcome{^predictor.PlanetID(0): predictor.Day},
		Default: predictor.Night,
	}
	c := serve(t, tbl)
	ctx := context.Background()

	got, err := c.Guess(ctx, ^predictor.PlanetID(0))
	require.NoError(t, err)
	assert.Equal(t, predictor.Day, got, "full-range ids must survive the wire")

	got, err = c.Guess(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, predictor.Night, got)
}

func TestGRPC_ServerError(t *testing.T) {
	c := serve(t, failingOracle{err: status.Error(codes.Unavailable, "warming up")})

	_, err := c.Guess(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
}

func TestClient_CloseWithoutConn(t *testing.T) {
	c := NewClientWithConn(nil)
	assert.NoError(t, c.Close())
}
