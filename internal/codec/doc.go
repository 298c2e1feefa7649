// Package codec translates between file content and typed values.
//
// The codec is chosen once from the file extension:
//
//	.csv .tsv          tabular     *domain.Dataset
//	.json .yaml .yml   structured  map[string]any / []any
//	.txt .md .log      raw text    string
//	.bin .dat          binary      []byte
//
// Any other extension, or a value whose shape does not match the extension,
// yields domain.ErrUnsupportedFormat.
//
// Store adds the load policy on top of an adapter.FS: missing files resolve
// to a caller-supplied default, and empty or malformed files are logged and
// overwritten with that default. Saving a dataset and loading it back yields
// the same columns and row values in the same order.
package codec
