// Package library holds the in-memory authoritative cache of the user's
// reading list and mutates it optimistically against the backend.
//
// # Optimistic Mutation
//
// Updates and removals follow a memento pattern: capture a copy of the
// collection, apply the change locally so the UI sees it immediately, then
// issue the request. A success reconciles the entry with the canonical
// server record; a failure restores the captured collection, so a failed
// mutation can never leave a half-applied state.
//
// Creates are deliberately not optimistic. The server owns id assignment,
// so inventing a placeholder risks showing an entry the backend rejects;
// the collection changes only once the canonical record arrives.
//
// # Ordering
//
// Two rapid mutations on the same entry race at the network layer. Each
// optimistic apply bumps a per-entry sequence counter, and a response is
// honored only while its counter is still current. The last user action
// wins, not the last network response to arrive.
//
// # Pagination
//
// FetchAll(page) replaces the whole collection with one server page and
// records the server-reported page metadata. Switching pages discards the
// previous page from memory; the store is bounded by one page regardless
// of library size.
//
// # Cross-entity Consistency
//
// Each entry denormalizes the reading state onto the embedded book card
// (rating and status shown in grid views). Rating an entry updates entry
// and book fields inside one memento, so both change and roll back as one.
package library
