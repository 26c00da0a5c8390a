// Package dataprocessing turns a set of heterogeneous delimited text files into
// one unified table.
//
// # Architecture
//
// The package is organized into four components, applied in this order:
//
//  1. Loader: reads each file into a table of text cells, retrying a failed
//     decode once with a single-byte fallback encoding
//  2. Normalizer: zero-pads identifier columns and parses compact dates, per file
//  3. UnifyColumns and Concat: align every table to the sorted union of columns
//     and stack the rows in input order
//  4. CoerceNumeric: converts allowlisted columns of the merged table to numbers
//
// # Usage
//
//	loader, err := dataprocessing.NewLoader(dataprocessing.LoaderOptions{
//	    PrimaryEncoding:  "utf-8",
//	    FallbackEncoding: "latin1",
//	    MissingTokens:    []string{"", "NA", "NaN"},
//	}, logger)
//	result, err := loader.LoadFiles(ctx, paths, 1, dataprocessing.PolicyAbort)
//
//	normalizer := dataprocessing.NewNormalizer(rules)
//	for _, t := range result.Tables() {
//	    normalizer.Normalize(t)
//	}
//
//	unified, err := dataprocessing.UnifyColumns(result.Tables())
//	merged, err := dataprocessing.Concat("dados_unificados", unified)
//	dataprocessing.CoerceNumeric(merged, rules.ColumnsWithRule(merged, domain.RuleNumeric))
//
// # Data Flow
//
//	CSV files → Loader → text tables → Normalizer → UnifyColumns → Concat → CoerceNumeric
//
// # Error Handling
//
// Per-file failures are reported as *LoadError, which wraps ErrDecode,
// ErrRaggedRow, ErrEmptyFile or the underlying I/O and CSV errors. No rows are
// ever dropped: unparseable dates and numbers become missing cells instead.
package dataprocessing
