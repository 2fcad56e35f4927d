// Package sources turns descriptive material into registry records.
//
// Inputs are read from local files or fetched over HTTP (Fetcher), then
// parsed by format: ANVL text (ParseANVL), EAD finding aids (ParseEAD),
// conservation reports rendered to text by an external TextExtractor
// (ParseReport), or harvested from an OAI-PMH repository (Harvester).
// Records built from metadata follow the profile key order. AssignTargets
// pairs records with a list of target URLs.
package sources
