// Package audit implements the audit logger for the vibration control
// container.
//
// Every engine action is appended as one JSON line with user, action,
// command detail, outcome and latency. Rotation is size- and age-based
// so a long-lived controller does not grow its log without bound.
package audit
