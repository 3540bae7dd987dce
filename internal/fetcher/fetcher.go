// Package fetcher downloads the EPAR and SPOR source exports and parses the
// container formats they arrive in (XLSX, ZIP-wrapped XML). Everything past
// this package works on typed rows; no other package touches the network.
package fetcher

import (
	"context"
	"io"
)

// Source endpoints published by the EMA. Overridable via configuration for
// tests and mirrors.
const (
	URLEPARIndex  = "https://www.ema.europa.eu/sites/default/files/Medicines_output_european_public_assessment_reports.xlsx"
	URLSPORExport = "https://spor-net.ema.europa.eu/oms-api/v1/organisations/export"
)

// Fetcher defines the interface for downloading remote source files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it atomically to the given
	// path (temp file plus rename). Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
