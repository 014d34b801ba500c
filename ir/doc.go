// Package ir provides the in-memory representation of patch documents.
//
// # Overview
//
// A patch document is a YAML tree whose object keys keep their document
// order: the order of keys in a patch is the order in which directives are
// applied. ir.Node is a recursive tagged union holding that tree.
//
// # Node Types
//
//   - NullType: null value, `KEY:` with nothing after it
//   - BoolType: boolean
//   - NumberType: integer (Int64) or floating point (Float64)
//   - StringType: string
//   - ArrayType: ordered list of nodes
//   - ObjectType: ordered key/value pairs
//
// For ObjectType nodes, Fields[i] is the key for the value at Values[i], so
// there are always the same number of fields as values. Keys are string
// nodes and occur once.
//
// # Navigating Nodes
//
// Nodes keep parent links (Parent, ParentIndex, ParentField) so that errors
// can name the offending location with Path():
//
//	path := node.Path() // e.g., "$.GPIOA.ODR[0]"
//
// # Typed Access
//
// The As* and Get* helpers convert values to Go types and report a
// *TypeError, wrapping ErrDocumentType, when the document has the wrong
// shape. A null value read as an object is an empty object.
//
// # Thread Safety
//
// Node structures are not thread-safe. Clone a document before sharing it
// between goroutines.
package ir
