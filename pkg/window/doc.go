// Package window implements the minute windows of the keyed reducers. On the unbounded stream of records we use
// event time to assign every record to the minute it belongs to, and the flush markers of the merger to know
// when the set of records of a minute is complete. A reducer keeps its open windows in a SortedWindowList and
// materializes them in minute order once the minute is closed.
//
// Windows are tumbling and aligned: minute m covers the event time seconds [(m-1)*60, m*60-1] for every key.
// Each window holds the state of every key seen during its minute.
package window
