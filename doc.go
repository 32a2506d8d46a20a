// Package chatbridge sends role-tagged chat requests to a language-model backend
// and returns either one completed answer or an incremental stream of updates.
//
// The root package holds the canonical data model shared by the adapter, router
// and backend packages. Backends live under adapter/, request routing and the
// fallback policy under router/.
package chatbridge
