// Package models holds the presentation state of a debug session: the
// breakpoint table, the thread list, the call stack and the variable tree.
//
// Each model guards its storage with its own mutex and notifies observers
// after releasing it, so an observer may read the model it was notified by.
// Observers receive an UpdateFlag telling them whether only values changed
// or whether rows were added or removed.
package models
