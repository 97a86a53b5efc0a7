package operation

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
)

type funcOp struct {
	id  string
	run func(ctx context.Context, opCtx *Context, config map[string]any) (any, error)
}

func (f funcOp) ID() string          { return f.id }
func (f funcOp) Description() string { return "test operation " + f.id }
func (f funcOp) Run(ctx context.Context, opCtx *Context, config map[string]any) (any, error) {
	return f.run(ctx, opCtx, config)
}

func echo() Operation {
	return funcOp{id: "echo", run: func(_ context.Context, opCtx *Context, config map[string]any) (any, error) {
		return map[string]any{"container": opCtx.ContainerID, "config": config}, nil
	}}
}

func failing() Operation {
	return funcOp{id: "fail", run: func(context.Context, *Context, map[string]any) (any, error) {
		return nil, errors.New("element not interactable")
	}}
}

func blocking() Operation {
	return funcOp{id: "block", run: func(ctx context.Context, _ *Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

func panicking() Operation {
	return funcOp{id: "panic", run: func(context.Context, *Context, map[string]any) (any, error) {
		panic("nil page")
	}}
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(echo(), failing(), blocking(), panicking())
	return reg
}

func TestRegistry(t *testing.T) {
	reg := newRegistry(t)

	err := reg.Register(echo())
	assert.ErrorIs(t, err, ErrDuplicateOperation)

	err = reg.Register(funcOp{id: ""})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	op, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", op.ID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	ids := make([]string, 0)
	for _, d := range reg.List() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"block", "echo", "fail", "panic"}, ids)

	assert.Panics(t, func() { reg.MustRegister(echo()) })
}

func TestExecuteUnknownOperation(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{})

	var res Result
	assert.NotPanics(t, func() {
		res = exec.Execute(context.Background(), Request{ContainerID: "c", OperationID: "nope"})
	})
	assert.False(t, res.Success)
	assert.Equal(t, "operation_not_found", res.Error)
}

func TestExecuteSuccess(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{SessionID: "sess_1"})

	res := exec.Execute(context.Background(), Request{
		ContainerID: "feed",
		OperationID: "echo",
		Config:      map[string]any{"color": "#00C853"},
	})
	require.True(t, res.Success, res.Error)
	out := res.Result.(map[string]any)
	assert.Equal(t, "feed", out["container"])
	assert.Equal(t, "#00C853", out["config"].(map[string]any)["color"])
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestExecuteFailures(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{Timeout: time.Second})

	res := exec.Execute(context.Background(), Request{OperationID: "fail"})
	assert.False(t, res.Success)
	assert.Equal(t, "element not interactable", res.Error)

	res = exec.Execute(context.Background(), Request{OperationID: "panic"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")
}

func TestExecuteTimeout(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{Timeout: 20 * time.Millisecond})

	res := exec.Execute(context.Background(), Request{OperationID: "block"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")

	start := time.Now()
	res = exec.Execute(context.Background(), Request{
		OperationID: "block",
		Config:      map[string]any{TimeoutKey: json.Number("5")},
	})
	assert.False(t, res.Success)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecuteCallerCancellation(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.Execute(ctx, Request{OperationID: "block"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cancelled")
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	exec := NewExecutor(newRegistry(t), ExecutorOptions{Timeout: time.Second})

	results := exec.ExecuteBatch(context.Background(), []Request{
		{ContainerID: "a", OperationID: "fail"},
		{ContainerID: "b", OperationID: "echo"},
	})
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, "b", results[1].Result.(map[string]any)["container"])
}

func TestExecuteBatchConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	reg := NewRegistry()
	reg.MustRegister(funcOp{id: "slow", run: func(ctx context.Context, opCtx *Context, _ map[string]any) (any, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return opCtx.ContainerID, nil
	}})

	reqs := make([]Request, 8)
	for i := range reqs {
		reqs[i] = Request{ContainerID: string(rune('a' + i)), OperationID: "slow"}
	}

	serial := NewExecutor(reg, ExecutorOptions{})
	results := serial.ExecuteBatch(context.Background(), reqs)
	assert.Equal(t, int32(1), peak.Load())
	for i, res := range results {
		assert.Equal(t, string(rune('a'+i)), res.Result)
	}

	peak.Store(0)
	parallel := NewExecutor(reg, ExecutorOptions{BatchConcurrency: 4})
	results = parallel.ExecuteBatch(context.Background(), reqs)
	assert.LessOrEqual(t, peak.Load(), int32(4))
	for i, res := range results {
		assert.Equal(t, string(rune('a'+i)), res.Result)
	}
}

type inputPage struct {
	Page
	moves, clicks int
}

func (p *inputPage) MouseMove(context.Context, float64, float64) error { p.moves++; return nil }
func (p *inputPage) ClickAt(context.Context, float64, float64) error   { p.clicks++; return nil }

func TestCreateContext(t *testing.T) {
	page := &inputPage{}
	exec := NewExecutor(NewRegistry(), ExecutorOptions{SessionID: "sess_x", Page: page})

	elems := []Element{{Path: "root/0"}, {Path: "root/1", Selector: "#b"}}
	c := exec.CreateContext("feed", elems, nil)
	assert.Equal(t, "feed", c.ContainerID)
	assert.Equal(t, "sess_x", c.SessionID.String())
	assert.Same(t, page, c.Page.(*inputPage))
	assert.Equal(t, "#b", c.Target())
	assert.Equal(t, []string{`[data-wh-path="root/0"]`, "#b"}, c.Selectors())

	pathOnly := exec.CreateContext("feed", elems[:1], nil)
	assert.Equal(t, `[data-wh-path="root/0"]`, pathOnly.Target())
	assert.Equal(t, "", exec.CreateContext("feed", nil, nil).Target())

	require.NoError(t, c.Input.MouseMove(context.Background(), 1, 2))
	require.NoError(t, c.Input.MouseClick(context.Background(), 1, 2))
	assert.Equal(t, 1, page.moves)
	assert.Equal(t, 1, page.clicks)

	// contexts are never shared
	assert.NotSame(t, c, exec.CreateContext("feed", elems, nil))

	bare := NewExecutor(NewRegistry(), ExecutorOptions{}).CreateContext("x", nil, nil)
	assert.Nil(t, bare.Input.MouseMove)
}

func TestExecuteRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	exec := NewExecutor(newRegistry(t), ExecutorOptions{Metrics: metrics})

	exec.Execute(context.Background(), Request{OperationID: "echo"})
	exec.Execute(context.Background(), Request{OperationID: "fail"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OperationCalls.WithLabelValues("echo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OperationCalls.WithLabelValues("fail", "failure")))
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{Success: false, Error: "operation_not_found"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"operation_not_found"}`, string(data))

	data, err = json.Marshal(Result{Success: true, Result: map[string]any{"n": 1}, DurationMs: 12})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"result":{"n":1},"durationMs":12}`, string(data))
}

func TestConfigAccessors(t *testing.T) {
	cfg := map[string]any{
		"s": "x", "empty": "", "b": true, "f": 1.5, "i": 3, "u": uint64(7), "n": json.Number("2.5"),
		"m": map[string]any{"title": ".t", "skip": 1},
	}

	s, ok := GetString(cfg, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = GetString(cfg, "empty")
	assert.False(t, ok)

	assert.True(t, GetBool(cfg, "b", false))
	assert.True(t, GetBool(cfg, "missing", true))

	f, _ := GetFloat(cfg, "f")
	assert.Equal(t, 1.5, f)
	i, _ := GetInt(cfg, "i")
	assert.Equal(t, 3, i)
	u, _ := GetFloat(cfg, "u")
	assert.Equal(t, 7.0, u)
	n, _ := GetFloat(cfg, "n")
	assert.Equal(t, 2.5, n)
	_, ok = GetFloat(cfg, "s")
	assert.False(t, ok)

	m, ok := GetStringMap(cfg, "m")
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"title": ".t"}, m)
}
