// Package schema holds the catalog metadata of the active source.
//
// A Cache lists table stubs eagerly and loads per-table detail on demand.
// Concurrent detail requests for the same table share one fetch, and every
// asynchronous result is tagged with the generation it was started under:
// a result that arrives after the cache was rebuilt (source change or
// refresh) is dropped without touching the new state.
//
// Readers never see the live maps. Snapshot returns an immutable copy that
// the completion synthesizer and the editor shells render from.
package schema
