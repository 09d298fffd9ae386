// Package pdfengine is an engine.Engine backed by pdfcpu.
//
// The document is never downloaded up front. pdfcpu reads through an
// io.ReadSeeker whose reads turn into chunk-aligned range requests; each
// read blocks until the transport supplies or fails the chunk. Chunks stay
// in memory for the life of the session.
//
// Pages are sized at one pixel per PDF point (MediaBox, rounded up).
package pdfengine
