package framework

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopPriorityOrder(t *testing.T) {
	var order []int
	loop := NewLoop()
	for _, lv := range []int{PrLvPublish, PrLvCommand, PrLvPostProc, PrLvSense} {
		level := lv
		loop.AddController(level, ControlFunc(func(cc ControlContext) error {
			require.Equal(t, level, cc.PriorityLevel())
			order = append(order, level)
			return nil
		}))
	}
	loop.RunIteration(context.Background(), time.Now())
	require.Equal(t, []int{PrLvCommand, PrLvSense, PrLvPublish, PrLvPostProc}, order)
}

func TestLoopMessages(t *testing.T) {
	loop := NewLoop()
	var taken, seen []Message
	loop.AddController(PrLvCommand, ControlFunc(func(cc ControlContext) error {
		cc.ProcessMessages(func(msg Message) bool {
			if s, ok := msg.(string); ok && s == "restart" {
				taken = append(taken, msg)
				return true
			}
			return false
		})
		return nil
	}))
	loop.AddController(PrLvPublish, ControlFunc(func(cc ControlContext) error {
		cc.ProcessMessages(func(msg Message) bool {
			seen = append(seen, msg)
			return true
		})
		return errors.New("ignored")
	}))
	loop.PostMessage("restart")
	loop.PostMessage(42)
	loop.RunIteration(context.Background(), time.Now())
	require.Equal(t, []Message{"restart"}, taken)
	require.Equal(t, []Message{42}, seen)

	taken, seen = nil, nil
	loop.RunIteration(context.Background(), time.Now())
	require.Empty(t, taken)
	require.Empty(t, seen)
}

func TestLoopRun(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	iterCh := make(chan time.Time, 1)
	loop.AddController(PrLvSense, ControlFunc(func(cc ControlContext) error {
		iterCh <- cc.Time()
		return nil
	}))
	started := make(chan struct{})
	loop.AddRunnable(RunnableFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	<-started
	loop.TriggerNext()
	select {
	case <-iterCh:
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestRunnerAggregatesErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	r := NewRunner().Go(
		RunnableFunc(func(context.Context) error { return errA }),
		NamedRun("b", RunnableFunc(func(context.Context) error { return errB })),
		RunnableFunc(func(context.Context) error { return context.Canceled }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	require.NoError(t, NewRunner().Go(RunnableFunc(func(context.Context) error { return nil })).Wait())
}

type testCloser struct{ closed chan struct{} }

func (c *testCloser) Close() error {
	close(c.closed)
	return nil
}

var _ io.Closer = &testCloser{}

func TestRunWithContextCloser(t *testing.T) {
	c := &testCloser{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.closed
		return io.EOF
	})
	require.Equal(t, context.Canceled, err)

	c = &testCloser{closed: make(chan struct{})}
	err = RunWithContextCloser(context.Background(), c, func() error { return io.EOF })
	require.Equal(t, io.EOF, err)
	<-c.closed
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(io.EOF)
	require.Equal(t, "EOF", errs.Aggregate().Error())
	errs.Add(io.ErrUnexpectedEOF)
	require.Contains(t, errs.Error(), "multiple errors:")
	require.ErrorIs(t, errs.Aggregate(), io.ErrUnexpectedEOF)
}
