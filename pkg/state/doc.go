// Package state binds a typed settings struct to a versioned settings
// Provider.
//
// Each top-level JSON field of T becomes one property whose default is the
// field's JSON encoding in the defaults value. Loading reads the stored
// encodings for the current version, layers them over the defaults and
// hydrates a T:
//
//	Provider.Load -> layering.MergeLayers(stored, defaults) -> hydrate.Decoder[T]
//
// Saving writes only the fields whose encoding differs from what is stored,
// and leaves fields that still equal their default unstored, so a later
// release can change a default without a migration.
package state
