// Package ntuple exposes a columnar per-event field store as lazily read
// events, collections and records.
//
// A Store keeps exactly one entry resident. LoadEntry (or ranging over
// Events) makes a new entry current, and every view obtained for another
// entry becomes stale: reading through it fails with a StaleViewError
// rather than returning data from the wrong event.
//
//	store, err := ntuple.Open("ntuple.parquet")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	for ev := range store.Events() {
//	    hits := ev.RecHits()
//	    for hit, err := range hits.All() {
//	        if err != nil {
//	            return err
//	        }
//	        energy, err := hit.Get("energy")
//	        ...
//	    }
//	}
//
// Records follow the prefix convention: attribute a of a record in group p
// is element Index() of field p_a. A collection's length is read from its
// size field each time it is needed. Nothing is cached.
//
// A Record with index NoIndex stands for an absent element, e.g. an
// unmatched association. IsValid reports false for it and Get fails with
// an InvalidRecordError.
package ntuple
