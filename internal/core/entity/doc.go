// Package entity holds the canonical form of one fetched content item
//
// A raw item from the origin is a loose JSON object. Canonicalize turns it
// into an Entity: a small set of typed fields the pipeline actually reads
// plus an Extra bucket for everything else, with empty values stripped.
// Serialize and Deserialize move an Entity to and from one log line.
//
// Canonicalize and Serialize never touch the filesystem or the network.
package entity
