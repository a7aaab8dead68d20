// Package framework runs devices and facades in a periodic loop.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is posted to the loop and consumed by controllers,
// e.g. a command received from MQTT.
type Message interface{}

// Controller defines logic executed in each loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext provides the context of current iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// ProcessMessages visits messages collected for this iteration.
	// Messages for which fn returns true are consumed.
	ProcessMessages(fn func(Message) bool)

	LoopControl
}

// LoopControl exposes access to the loop.
type LoopControl interface {
	// PostMessage enqueues the message for the next iteration.
	PostMessage(Message)
	// TriggerNext schedules the next iteration immediately.
	TriggerNext()
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 8

// Predefined priority levels, run in ascending order.
const (
	// PrLvCommand executes commands posted to the loop.
	PrLvCommand int = 1
	// PrLvSense reads telemetry.
	PrLvSense int = 3
	// PrLvPublish publishes readings to facades.
	PrLvPublish int = 5
	// PrLvPostProc is for recording and cleanup.
	PrLvPostProc int = PriorityLevels - 1
)
