// Package loanengine implements the loan lifecycle: creating loans with a
// default 14-day period, renewing them against the loan's renewal budget,
// and closing them by returning the book.
//
// Every mutating operation runs as one storage transaction and delegates
// copy-count bookkeeping to the availability coordinator. Transactions that
// lose a concurrency conflict are retried with exponential backoff.
// Overdue-ness and days left are derived from the injected clock on every
// read and never persisted.
package loanengine
