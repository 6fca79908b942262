// Package analytics derives read-only meeting statistics from calendar
// events. Reports are recomputed from an event snapshot on every call;
// nothing is persisted.
package analytics
