// Package purgeable provides bitmaps that the cache may discard under
// memory pressure while nobody holds them.
//
// Every Image lives in one slot of a Cache, identified by a Key. Callers
// read pixels only inside WithLocked. Between locks the cache may purge
// the image: its pixels are dropped, and every later lock reports
// LockedDiscarded. A purged image never comes back; the caller creates or
// regenerates a new one for the slot.
//
// Purging happens when:
//   - PurgeAll is called, directly or through a pressure signal delivered
//     via Subscribe (for example from a Monitor)
//   - the total size of live images exceeds Config.MaxTotalBytes, in which
//     case the least recently locked images go first
//   - a slot is replaced or released
//
// Locked images are never purged while locked; a purge requested during a
// lock takes effect when the last lock is released. Images still being
// rendered by CreateImage are not registered and cannot be purged.
package purgeable
