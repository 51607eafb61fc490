// Package options contains the program options.
package options

// Program options of the database tool.
type Program struct {
	Database string // database file to inspect
	Import   string // binary to import into a new database
	Output   string // output database file for imports

	Force bool // overwrite an existing output database
	Debug bool // enable debug logging
	Quiet bool // quiet mode
}
