// Package services implements the driving ports: the ingestion
// orchestrator that indexes SVD files and the hybrid search service
// that answers queries over the indexed registers.
package services
