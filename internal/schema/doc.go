// Package schema compiles model definitions written in CUE into
// record.ModelType values.
//
// A definitions directory is loaded as one CUE instance; every struct under
// the top-level "model" field becomes one model type:
//
//	package models
//
//	model: User: {
//		table: "users"
//		fields: ["id", "name", "email", "visits"]
//		readonly: ["email"]
//		types: {visits: "integer", born: "date:Y-m-d"}
//		auto: {token: {generate: "uuid"}}
//		timestamps: {mode: "datetime", create: "created_at", update: "updated_at"}
//		hidden: ["token"]
//		relations: posts: {has_many: "Post", foreign_key: "user_id"}
//		together: ["posts"]
//	}
//
// Compiled models are registered with Install, which checks that every
// relation names a known model. Relations resolve their target through
// the record's registry, so models may refer to each other in any order.
package schema
