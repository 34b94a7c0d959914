// Package record implements the Active Record lifecycle and attribute engine.
//
// A ModelType describes one table: primary key, allowed and readonly
// fields, type descriptors, auto-complete fields, timestamps, accessors,
// mutators, relations and hooks. Model types are registered once at
// startup with a Registry. A Record is one row of a model type.
//
// ATTRIBUTES:
//
// Record.Set runs the write pipeline (mutator or type conversion, auto
// timestamps) and Record.Get the read pipeline (accessor, type
// conversion, timestamp formatting, relation fallback). Every Record keeps
// the attributes as loaded (origin) next to the current ones; ChangedData
// is the difference and is the only data an update sends.
//
// PERSISTENCE:
//
// Save dispatches to insert or update by Exists. Each insert, update and
// delete runs inside one transaction on the record's query.Conn, including
// cascaded relation writes, and rolls back on any store fault:
//
//	Save:   before_write -> (before_insert .. after_insert | before_update .. after_update) -> after_write
//	Delete: before_delete .. after_delete
//
// A before_* callback returning false aborts the operation and Save or
// Delete returns (false, nil). Store faults surface as PERSISTENCE_FAILURE.
//
// CRITICAL: ChangedData treats a pair where either side is empty as equal
// only when both are strictly identical. 0, "" and nil therefore all
// differ from each other, while non-empty values compare loosely.
//
// OUTPUT:
//
// ToOutput renders attributes and loaded relations as an ordered map
// honoring Visible, Hidden and Append rules; ToJSON encodes it with key
// order preserved.
//
// Records are not safe for concurrent use.
package record
