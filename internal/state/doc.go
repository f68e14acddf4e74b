// Package state implements the object/state store the BluOS adapter runs
// against.
//
// The store is hierarchical: keys are dotted paths such as
// "bluos.0.BluOS.Den.Volume". Each key has an optional object describing
// it (type, role, read/write flags, default value) and an optional state
// holding the current value with an acknowledgement flag and timestamp.
//
// Writers pick the flag deliberately. A user or automation requesting a
// change writes ack=false; the adapter echoing a device fact back writes
// ack=true. Subscribers use the flag to tell commands from feedback.
//
// Objects and states persist through a Repository (SQLite in production,
// in memory for tests). An optional Bus mirrors states onto MQTT and
// accepts writes from other systems.
package state
