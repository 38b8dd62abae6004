// Package exporter renders analysis results to the report formats the
// pipeline publishes: CSV panels, an RTF summary document, an Excel
// workbook, and PNG charts.
package exporter
