// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding providers, the vector index,
// the lexical search engine, the chunk catalog, the reranker and the
// config store.
package driven
