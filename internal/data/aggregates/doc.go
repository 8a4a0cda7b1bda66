// Package aggregates implements the batch, assessment, emission and report
// aggregates on top of the table repos in internal/data/repos.
//
// Every write runs in one aggregate-owned transaction. Row locks are taken in
// a fixed order (batch before report) and audit entries are written inside the
// same transaction as the change they describe.
package aggregates
