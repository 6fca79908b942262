// Package preference stores per-user availability rules for the scheduling
// engine.
//
// A preference consists of a timezone, a daily work-hours window, a set of
// blocked weekdays, and a buffer that must stay free around every busy
// interval. Preferences are hard constraints for automatic scheduling: the
// engine only ever proposes slots inside them.
//
// Updates are merge-by-field: a caller can change a single dimension (for
// example, block weekends) without restating the rest. Unset users resolve
// to the system default of 09:00-17:00, no blocked days, and no buffer.
package preference
