// Package record keeps a SQLite history of fresh radar targets.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang/glog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/msgs"
	"github.com/robotalks/radar.go/pkg/telemetry"
)

// Detection is a fresh target of a device at a time.
type Detection struct {
	ID             uint      `gorm:"primaryKey"`
	Device         string    `gorm:"size:64;index:idx_device_time"`
	Time           time.Time `gorm:"index:idx_device_time"`
	Slot           int
	Angle          *float64
	Distance       *float64
	Speed          *float64
	SignalStrength *float64
	Direction      string `gorm:"size:16"`
	X              *float64
	Y              *float64
}

// Source provides snapshots of a device.
type Source interface {
	DeviceName() string
	Snapshot() *telemetry.Snapshot
}

type glogWriter struct{}

func (glogWriter) Printf(format string, args ...interface{}) {
	glog.Warningf(format, args...)
}

// PruneInterval is how often the loop deletes expired detections.
const PruneInterval = time.Hour

// Recorder writes detections to SQLite.
type Recorder struct {
	Sources []Source
	// Retention is how long detections are kept, 0 keeps forever.
	Retention time.Duration

	db        *gorm.DB
	lastPrune time.Time
}

// Open opens or creates the database at path, ":memory:" for tests.
func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{
		Logger: logger.New(glogWriter{}, logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.AutoMigrate(&Detection{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	glog.Infof("recording detections to %s", path)
	return &Recorder{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	// a single connection keeps :memory: databases alive.
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// Close implements io.Closer.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddToLoop implements LoopAdder.
func (r *Recorder) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvPostProc, r)
}

// Control implements Controller.
func (r *Recorder) Control(ctx fx.ControlContext) error {
	var errs fx.AggregatedError
	for _, src := range r.Sources {
		errs.Add(r.Record(ctx.Context(), src.DeviceName(), src.Snapshot()))
	}
	if now := ctx.Time(); r.Retention > 0 && now.Sub(r.lastPrune) >= PruneInterval {
		r.lastPrune = now
		n, err := r.Prune(ctx.Context(), now.Add(-r.Retention))
		if err != nil {
			errs.Add(fmt.Errorf("prune: %w", err))
		} else if n > 0 {
			glog.Infof("pruned %d detections older than %s", n, r.Retention)
		}
	}
	return errs.Aggregate()
}

func optional(r telemetry.Reading) *float64 {
	if !r.Known {
		return nil
	}
	v := r.Value
	return &v
}

// Record writes fresh targets of a snapshot.
func (r *Recorder) Record(ctx context.Context, device string, s *telemetry.Snapshot) error {
	targets := s.FreshTargets()
	if len(targets) == 0 {
		return nil
	}
	rows := make([]Detection, 0, len(targets))
	for _, t := range targets {
		row := Detection{
			Device:         device,
			Time:           s.Time,
			Slot:           t.Slot,
			Angle:          optional(t.Attr(telemetry.AttrAngle)),
			Distance:       optional(t.Attr(telemetry.AttrDistance)),
			Speed:          optional(t.Attr(telemetry.AttrSpeed)),
			SignalStrength: optional(t.Attr(telemetry.AttrSignalStrength)),
			X:              optional(t.Attr(telemetry.AttrX)),
			Y:              optional(t.Attr(telemetry.AttrY)),
		}
		if t.Attr(telemetry.AttrDirection).Known {
			row.Direction = t.Direction.String()
		}
		rows = append(rows, row)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// Query lists detections of a device within [from, to), oldest first.
func (r *Recorder) Query(ctx context.Context, device string, from, to time.Time) ([]Detection, error) {
	var rows []Detection
	err := r.db.WithContext(ctx).
		Where("device = ? AND time >= ? AND time < ?", device, from, to).
		Order("time, slot").
		Find(&rows).Error
	return rows, err
}

// Prune deletes detections before t and returns how many were deleted.
func (r *Recorder) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("time < ?", before).Delete(&Detection{})
	return res.RowsAffected, res.Error
}

// History lists reports of a device within [from, to), one per recorded
// time, oldest first.
func (r *Recorder) History(ctx context.Context, device string, from, to time.Time) ([]*msgs.TargetReport, error) {
	rows, err := r.Query(ctx, device, from, to)
	if err != nil {
		return nil, err
	}
	var reports []*msgs.TargetReport
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].Time.Equal(rows[start].Time) {
			end++
		}
		reports = append(reports, Report(device, rows[start:end]))
		start = end
	}
	return reports, nil
}

// Report converts rows at the same time into a report message.
func Report(device string, rows []Detection) *msgs.TargetReport {
	m := &msgs.TargetReport{Device: device, TargetNumber: uint32(len(rows)), TargetNumberKnown: true}
	for _, row := range rows {
		if m.TimeMs == 0 {
			m.TimeMs = row.Time.UnixNano() / int64(time.Millisecond)
		}
		t := &msgs.Target{Slot: uint32(row.Slot)}
		set := func(p *float64, dst *float64, bit uint32) {
			if p != nil {
				*dst = *p
				t.Known |= bit
			}
		}
		set(row.Angle, &t.Angle, msgs.KnownAngle)
		set(row.Distance, &t.Distance, msgs.KnownDistance)
		set(row.Speed, &t.Speed, msgs.KnownSpeed)
		set(row.SignalStrength, &t.SignalStrength, msgs.KnownSignalStrength)
		set(row.X, &t.X, msgs.KnownX)
		set(row.Y, &t.Y, msgs.KnownY)
		if row.Direction != "" {
			if dir, err := telemetry.ParseDirection(row.Direction); err == nil {
				t.Direction = uint32(dir)
				t.Known |= msgs.KnownDirection
				if dir == telemetry.DirectionApproaching {
					m.HasTowardsTarget = true
				}
			}
		}
		m.Targets = append(m.Targets, t)
	}
	m.HasTowardsTargetKnown = len(rows) > 0
	return m
}
