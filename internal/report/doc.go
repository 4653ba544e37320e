// Package report writes the xlsx summaries of a run.
//
// HumanReport.xlsx lists the books a reader cares about: files that validated
// and were classified as human translation or machine convert. Headers are
// Vietnamese. MachineReport.xlsx carries every record, one column per record
// field, for diagnostics.
package report
