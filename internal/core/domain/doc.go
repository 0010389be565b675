// Package domain contains the core business entities for regsift:
// the parsed device tree (device, peripheral, register, field), the
// searchable chunk derived from it, search results, and run summaries.
// Domain types carry no infrastructure dependencies.
package domain
