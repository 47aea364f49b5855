// Package exporter writes transactions, ledger, monthly statistics and the
// retention matrix as CSV files and as a single XLSX workbook.
//
// CSV files start with a UTF-8 byte order mark so spreadsheet applications
// read Vietnamese product names correctly. Absent cohort cells are written
// empty, never as zero.
package exporter
