// Package tabular turns delimited files (CSV or TSV) into anvl records.
//
// The first row names the columns and every column becomes a record key, with
// no fixed schema. Column names are kept as written apart from a leading
// byte order mark. Empty cells stay present as empty values; in a
// single-column source a blank line between rows is an empty value. Structural
// problems (no columns, duplicate column names, ragged rows) surface as
// SchemaError values that cite the offending row.
//
// A Loader is restartable: every call to Rows opens the source afresh, so a
// batch can validate its input in one pass and execute it in another.
package tabular
