// Package source is the raw fetch adapter. It downloads the agency's
// enrollment workbooks, with retry, throttling and mirror fallback, and
// reads them into raw tables with excelize. Header detection, header
// de-duplication and per-row year tags happen here; everything after that
// belongs to the dataprocessing package.
package source
