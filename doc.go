// Package tripdk is a toolkit for turning raw taxi-trip CSV extracts into
// typed, geospatially enriched, quality-classified records.
//
// The core abstractions, in pipeline order, are:
//
// 1. Source
//
//	A Source produces raw records one at a time - each record is one CSV
//	line's fields keyed by header name. The csv subpackage provides a
//	chunked tokenizer Source which reads local files, HTTP URLs, or
//	anything implementing its Opener interface (see aws/s3), carrying
//	quote state across chunk boundaries so that quoted fields may span
//	reads, and enforcing a configurable error tolerance before aborting.
//
// 2. Enricher
//
//	An Enricher consumes one raw record and applies domain rules to it.
//	The trip subpackage provides two interchangeable strategies: a strict
//	one which drops any record failing a business rule, and an inclusive
//	one which never drops a record but instead assigns it a data-quality
//	category and a set of flags describing everything wrong with it. Both
//	compute the same derived features (haversine distance, speed, fare
//	estimate, temporal buckets, geohash cells, quality score).
//
// 3. Batcher
//
//	The Batcher groups enriched records into fixed-size batches and hands
//	each full batch to a sink. Sink failures are recorded but do not stop
//	the pipeline. The boltdb subpackage provides a local sink.
//
// The Ingester drives a Source, an Enricher, and a Batcher as one strictly
// ordered pull pipeline with progress reporting. See the ingest subpackage
// for a ready-made wiring and cmd/tripdk for the CLI.
package tripdk
