// Package core contains the organization provisioning domain: claim
// validation, the process-wide mutation lock and the orchestrator that drives
// each claim request to a terminal outcome. Identity service transports,
// event sources and storage adapters depend on this package; core does not
// depend on them.
package core
