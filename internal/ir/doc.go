// Package ir provides the foundational value model for Karst query trees.
//
// This package contains value types and canonical serialization only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the value layer free of circular dependencies.
//
// Key design constraints:
//   - Value is a closed variant: Null, Bool, Int, Float, String, Sequence, Map.
//     Operator arity checks in the query layer type-switch exhaustively over it.
//   - Canonical JSON follows RFC 8785: UTF-16 key ordering, NFC-normalized
//     strings, no HTML escaping. It is the only serialization used for
//     fingerprinting.
//   - Fingerprints are SHA-256 with domain separation, stable across processes.
package ir
