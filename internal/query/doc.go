// Package query defines the condition IR and the persistence port consumed
// by the record engine.
//
// The record engine never builds SQL itself. It describes WHERE conditions
// with the small sealed Cond vocabulary below and talks to storage through
// the Conn and Builder interfaces. internal/store implements the port over
// database/sql; record tests implement it in memory.
//
// CONDITIONS:
//
// Cond is a sealed interface using the marker method pattern:
//   - Eq: field = value
//   - In: field IN (values...)
//   - And: all conditions must hold
//
// Backends type-switch over these exhaustively. A nil Cond or an empty And
// means "no condition"; Empty reports that case.
//
// PORT:
//
//	Conn.Begin/Commit/Rollback   transaction scope (nestable)
//	Conn.Table(name)             Builder bound to one table
//	Builder.Where/Fields         narrow the statement
//	Builder.Insert/Update/...    execute it
//	Conn.TableFields(table)      live column list
//	Conn.LastInsertID(sequence)  generated key of the last insert
package query
