// Package buffer provides the current-entry buffer used by field store
// backends.
//
// Columnar ntuples are read one entry at a time. A backend decodes the
// fields of the requested entry into an EntryBuffer and serves ReadField
// lookups from it until the next entry is loaded.
//
// # Lifecycle
//
// 1. Begin: clear the previous entry in place and start a new one
//
//	buf.Begin(entry)
//
// 2. Set: store every decoded field
//
//	if err := buf.Set("rechit_energy", fieldstore.Sequence(values)); err != nil {
//	    // entry larger than the configured limit
//	}
//
// 3. Get: serve reads for the current entry
//
//	v, ok := buf.Get("rechit_energy")
//
// 4. Invalidate: drop the entry after a failed load
//
//	buf.Invalidate()
//
// # Memory Management
//
// The field map is reused across entries, so memory stays proportional to a
// single event. Values returned by Get alias the buffer and must not be used
// after the next Begin.
//
// # Statistics
//
//	stats := buf.Stats()
//	fmt.Printf("entry %d: %d fields, %d bytes\n",
//	    stats.Entry, stats.FieldCount, stats.SizeBytes)
package buffer
