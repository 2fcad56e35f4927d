// Package reconcile checks personal and corporate names against a name
// authority. Similarity scores names after Unicode folding; Decide picks a
// unique best candidate above the acceptance threshold; Client queries the
// Library of Congress name authority suggest service; Reconciler combines
// them and rewrites creator fields in records.
package reconcile
