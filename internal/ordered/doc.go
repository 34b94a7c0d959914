// Package ordered provides an insertion-ordered string map and a JSON encoder
// that preserves that order.
//
// Record data and serialized record output are ordered mappings: the order in
// which fields were loaded or assigned is the order in which they are written
// back out. Go maps cannot express that, so every layer that carries row data
// (store results, record attributes, serializer output) uses *Map.
package ordered
