package record

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/msgs"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

func snapshotAt(at time.Time, recs ...telemetry.Record) *telemetry.Snapshot {
	store := telemetry.NewStore(3)
	store.Apply(&telemetry.Report{At: at, Records: recs})
	return telemetry.NewTracker(store, time.Second).Snapshot(at)
}

func TestRecorder(t *testing.T) {
	r, err := Open(":memory:")
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	t0 := time.Date(2024, 7, 16, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(ctx, "front", snapshotAt(t0,
		telemetry.Record{Angle: -20, Distance: 12, Speed: 30, SignalStrength: 90, Direction: telemetry.DirectionApproaching},
		telemetry.Record{Distance: 40, Unset: []telemetry.Attr{telemetry.AttrAngle, telemetry.AttrSpeed, telemetry.AttrSignalStrength, telemetry.AttrDirection}},
	)))
	require.NoError(t, r.Record(ctx, "front", snapshotAt(t0.Add(time.Minute),
		telemetry.Record{Distance: 7, Direction: telemetry.DirectionReceding},
	)))
	require.NoError(t, r.Record(ctx, "rear", snapshotAt(t0, telemetry.Record{Distance: 3})))
	// nothing fresh, nothing written.
	require.NoError(t, r.Record(ctx, "front", snapshotAt(t0.Add(2*time.Minute))))

	rows, err := r.Query(ctx, "front", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.True(t, rows[0].Time.Equal(t0))
	require.Equal(t, 0, rows[0].Slot)
	require.NotNil(t, rows[0].Angle)
	require.Equal(t, -20.0, *rows[0].Angle)
	require.Equal(t, "approaching", rows[0].Direction)
	require.Equal(t, 1, rows[1].Slot)
	require.Nil(t, rows[1].Angle)
	require.Equal(t, 40.0, *rows[1].Distance)
	require.Empty(t, rows[1].Direction)
	require.Equal(t, "receding", rows[2].Direction)

	m := Report("front", rows[:2])
	require.Equal(t, uint32(2), m.TargetNumber)
	require.True(t, m.HasTowardsTarget)
	require.True(t, m.Targets[0].Has(telemetry.AttrAngle))
	require.False(t, m.Targets[1].Has(telemetry.AttrAngle))
	require.True(t, m.Targets[1].Has(telemetry.AttrDistance))

	n, err := r.Prune(ctx, t0.Add(30*time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	rows, err = r.Query(ctx, "front", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRecorderHistory(t *testing.T) {
	r, err := Open(":memory:")
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	t0 := time.Date(2024, 7, 16, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(ctx, "front", snapshotAt(t0,
		telemetry.Record{Distance: 12, Direction: telemetry.DirectionReceding},
		telemetry.Record{Distance: 20, Direction: telemetry.DirectionApproaching},
	)))
	require.NoError(t, r.Record(ctx, "front", snapshotAt(t0.Add(time.Second),
		telemetry.Record{X: -1.5, Y: 2, Distance: 2.5, Cartesian: true},
	)))

	reports, err := r.History(ctx, "front", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, uint32(2), reports[0].TargetNumber)
	require.True(t, reports[0].HasTowardsTarget)
	require.True(t, reports[0].Time().Equal(t0))
	require.Len(t, reports[1].Targets, 1)
	target := reports[1].Targets[0]
	require.True(t, target.Has(telemetry.AttrX))
	require.Equal(t, -1.5, target.X)
	require.Equal(t, 2.0, target.Y)
	require.NotZero(t, target.Known&msgs.KnownY)

	reports, err = r.History(ctx, "front", t0.Add(time.Minute), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, reports)
}

type testSource struct {
	snapshot *telemetry.Snapshot
}

func (s *testSource) DeviceName() string { return "front" }
func (s *testSource) Snapshot() *telemetry.Snapshot { return s.snapshot }

func TestRecorderRetention(t *testing.T) {
	r, err := Open(":memory:")
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	t0 := time.Date(2024, 7, 16, 10, 0, 0, 0, time.UTC)
	src := &testSource{snapshot: snapshotAt(t0, telemetry.Record{Distance: 5})}
	r.Sources = []Source{src}
	r.Retention = 2 * time.Hour
	loop := fx.NewLoop()
	loop.Add(r)

	count := func() int {
		rows, err := r.Query(ctx, "front", t0.Add(-time.Hour), t0.Add(24*time.Hour))
		require.NoError(t, err)
		return len(rows)
	}

	loop.RunIteration(ctx, t0)
	require.Equal(t, 1, count())

	src.snapshot = snapshotAt(t0.Add(3*time.Hour), telemetry.Record{Distance: 6})
	loop.RunIteration(ctx, t0.Add(3*time.Hour))
	require.Equal(t, 1, count(), "expired detection pruned")

	// not pruned again before the interval elapses.
	src.snapshot = snapshotAt(t0.Add(3*time.Hour+time.Minute), telemetry.Record{Distance: 7})
	loop.RunIteration(ctx, t0.Add(3*time.Hour+30*time.Minute))
	require.Equal(t, 2, count())

	loop.RunIteration(ctx, t0.Add(6*time.Hour))
	require.Equal(t, 0, count())
}
