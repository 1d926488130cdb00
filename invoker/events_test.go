package invoker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randydotnet/retryproxy/handle"
)

// eventRecorder subscribes to every observation point and records the
// delivery order.
type eventRecorder struct {
	mu     sync.Mutex
	trace  []string
	metas  []CallMetadata
	resps  []any
	errors []error
}

func (r *eventRecorder) record(ev string, meta CallMetadata) {
	r.mu.Lock()
	r.trace = append(r.trace, ev)
	r.metas = append(r.metas, meta)
	r.mu.Unlock()
}

func (r *eventRecorder) attach(inv *Invoker) {
	inv.OnCallBegin(func(meta CallMetadata) {
		r.record("begin", meta)
	})
	inv.OnBeforeInvoke(func(attempt int, meta CallMetadata) {
		r.record("before", meta)
	})
	inv.OnAfterInvoke(func(attempt int, response any, meta CallMetadata) {
		r.mu.Lock()
		r.resps = append(r.resps, response)
		r.mu.Unlock()
		r.record("after", meta)
	})
	inv.OnException(func(err error, attempt int, meta CallMetadata) {
		r.mu.Lock()
		r.errors = append(r.errors, err)
		r.mu.Unlock()
		r.record("exception", meta)
	})
	inv.OnCallSuccess(func(elapsed time.Duration, response any, attempts int, meta CallMetadata) {
		r.record("success", meta)
	})
}

func TestEvents_OrderOnSuccessfulRetry(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f, WithMaxRetries(2))
	require.NoError(t, AddErrorToRetryOn[*flakyError](inv, nil))

	rec := &eventRecorder{}
	rec.attach(inv)

	attempts := 0
	_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &flakyError{msg: "flaky"}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "before", "exception", "before", "after", "success"}, rec.trace)
}

func TestEvents_AfterInvokeFiresOnRetryableResponses(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f, WithMaxRetries(1))
	require.NoError(t, AddResponseToRetryOn(inv, func(r *statusReply) bool {
		return r.code == 503
	}))

	rec := &eventRecorder{}
	rec.attach(inv)

	attempts := 0
	_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (*statusReply, error) {
		attempts++
		if attempts == 1 {
			return &statusReply{code: 503}, nil
		}
		return &statusReply{code: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "before", "after", "before", "after", "success"}, rec.trace)
	require.Len(t, rec.resps, 2)
	assert.Equal(t, 503, rec.resps[0].(*statusReply).code)
}

func TestEvents_ExceptionFiresBeforeClassification(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f, WithMaxRetries(3))

	rec := &eventRecorder{}
	rec.attach(inv)

	fatal := &fatalError{msg: "boom"}
	_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
		return 0, fatal
	})

	// Unrecoverable errors still produce exactly one exception event.
	require.Error(t, err)
	require.Len(t, rec.errors, 1)
	assert.Same(t, fatal, rec.errors[0])
	assert.Equal(t, []string{"begin", "before", "exception"}, rec.trace)
}

func TestEvents_MetadataStableAcrossCall(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f, WithName("billing"), WithMaxRetries(1))
	require.NoError(t, AddErrorToRetryOn[*flakyError](inv, nil))

	rec := &eventRecorder{}
	rec.attach(inv)

	attempts := 0
	_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &flakyError{msg: "flaky"}
		}
		return attempts, nil
	}, WithOperation("Charge"))

	require.NoError(t, err)
	require.NotEmpty(t, rec.metas)

	first := rec.metas[0]
	assert.NotEmpty(t, first.CallID)
	assert.Equal(t, "billing", first.Invoker)
	assert.Equal(t, "Charge", first.Operation)
	for _, m := range rec.metas[1:] {
		assert.Equal(t, first.CallID, m.CallID)
	}
}

func TestEvents_DistinctCallsGetDistinctIDs(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f)

	var ids []string
	var mu sync.Mutex
	inv.OnCallBegin(func(meta CallMetadata) {
		mu.Lock()
		ids = append(ids, meta.CallID)
		mu.Unlock()
	})

	for i := 0; i < 2; i++ {
		_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestEvents_SubscriptionOrderAndUnsubscribe(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f)

	var got []string
	var mu sync.Mutex
	push := func(tag string) CallBeginFunc {
		return func(meta CallMetadata) {
			mu.Lock()
			got = append(got, tag)
			mu.Unlock()
		}
	}

	subA := inv.OnCallBegin(push("a"))
	inv.OnCallBegin(push("b"))
	inv.OnCallBegin(push("c"))

	run := func() {
		_, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
			return 1, nil
		})
		require.NoError(t, err)
	}

	run()
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got = nil
	subA.Unsubscribe()
	subA.Unsubscribe() // idempotent
	run()
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestEvents_SuccessReportsTransformedResponse(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f)
	require.NoError(t, AddResponseHandler(inv, func(r *statusReply) *statusReply {
		r.body = "transformed"
		return r
	}, nil))

	var successResp any
	var successAttempts int
	inv.OnCallSuccess(func(elapsed time.Duration, response any, attempts int, meta CallMetadata) {
		successResp = response
		successAttempts = attempts
	})

	out, err := Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (*statusReply, error) {
		return &statusReply{code: 200, body: "raw"}, nil
	})

	require.NoError(t, err)
	assert.Same(t, out, successResp)
	assert.Equal(t, "transformed", successResp.(*statusReply).body)
	assert.Equal(t, 1, successAttempts)
}

func TestEvents_SubscriberPanicAbortsCall(t *testing.T) {
	t.Parallel()

	f := &testFactory{}
	inv := newTestInvoker(t, f)
	inv.OnBeforeInvoke(func(attempt int, meta CallMetadata) {
		panic("observer blew up")
	})

	assert.PanicsWithValue(t, "observer blew up", func() {
		_, _ = Invoke(context.Background(), inv, func(ctx context.Context, h handle.Handle) (int, error) {
			return 1, nil
		})
	})

	handles := f.handles()
	require.Len(t, handles, 1)
	assert.Equal(t, 1, handles[0].teardowns())
}
