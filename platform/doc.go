// Package platform schedules background work on behalf of engine
// instances.
//
// A Platform owns a small pool of workers shared by every registered
// instance. Tasks are tracked per instance so DrainTasks can block until
// one instance's backlog is finished without waiting on the others, and
// Unregister can retire an instance cleanly before it is disposed.
package platform
