// Package svd parses CMSIS-SVD device description files into domain
// devices. The parser is tolerant of the inconsistencies common in
// vendor-published files: missing sizes default to 32 bits, missing
// descriptions become empty strings, and numeric literals may be
// hexadecimal, decimal or binary.
package svd
