// Package aggregates declares the write boundaries of the batch lifecycle:
// inputs, results, error codes and the collaborators an implementation needs.
package aggregates
