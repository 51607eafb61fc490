// Package app provides the main application helpers for the database
// tool: inspecting an existing database and importing a binary into a
// new one.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/database/textdb"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/memory"
	"github.com/retroenv/disasmdb/internal/options"
	"github.com/retroenv/disasmdb/internal/plugin"
	"github.com/retroenv/disasmdb/internal/plugin/arm"
	"github.com/retroenv/disasmdb/internal/plugin/elf"
	"github.com/retroenv/disasmdb/internal/plugin/unix"
	"github.com/retroenv/disasmdb/internal/stream"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// PrintBanner prints the version banner.
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}
	fmt.Println("[------------------------------------]")
	fmt.Println("[ disasmdb - disassembler database    ]")
	fmt.Printf("[------------------------------------]\n\n")
	fmt.Printf("version: %s\n\n", buildinfo.Version(version, commit, date))
}

// NewRegistry creates the module registry with all built in plug-ins.
func NewRegistry(logger *log.Logger) *plugin.Registry {
	registry := plugin.NewRegistry()
	registry.RegisterArchitecture(arm.New())
	registry.RegisterLoader(elf.New(logger))
	registry.RegisterOperatingSystem(unix.New())
	return registry
}

// Run dispatches to the import or inspect mode.
func Run(ctx context.Context, logger *log.Logger, opts options.Program) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Import != "" {
		return Import(logger, opts)
	}
	return Info(logger, opts)
}

// Info opens a database and logs a summary of its content.
func Info(logger *log.Logger, opts options.Program) error {
	db := textdb.New(logger, NewRegistry(logger))

	if !db.IsCompatible(opts.Database) {
		return fmt.Errorf("%s is not a %s database", opts.Database, db.Name())
	}
	if err := db.Open(opts.Database); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	doc := db.Document()
	logger.Info("Database opened", log.String("file", opts.Database))

	doc.ForEachMemoryArea(func(area memory.Area) {
		cells := 0
		area.ForEachCellData(func(uint64, cell.Data) {
			cells++
		})
		logger.Info(area.String(), log.Int("cells", cells))
	})

	var streamSize int
	if binary := doc.BinaryStream(); binary != nil {
		streamSize = int(binary.Size())
	}
	logger.Info("Document summary",
		log.Int("architectures", len(doc.ArchitectureTags())),
		log.Int("labels", doc.LabelCount()),
		log.Int("cross_references", doc.CrossReferenceCount()),
		log.Int("multi_cells", doc.MultiCellCount()),
		log.Int("comments", doc.CommentCount()),
		log.Int("binary_stream_bytes", streamSize),
	)
	return nil
}

// Import runs a loader over a binary, builds a document and flushes it
// into a new database file.
func Import(logger *log.Logger, opts options.Program) error {
	data, err := os.ReadFile(opts.Import)
	if err != nil {
		return fmt.Errorf("reading binary: %w", err)
	}

	registry := NewRegistry(logger)
	strm := stream.New(data)

	loader, ok := registry.FindLoader(strm)
	if !ok {
		return fmt.Errorf("no loader supports %s", opts.Import)
	}
	logger.Info("Importing binary",
		log.String("file", opts.Import), log.String("loader", loader.Name()))

	doc := document.New()
	if err := loader.Load(doc, strm); err != nil {
		return fmt.Errorf("loading binary: %w", err)
	}

	if armArch, ok := registry.Architecture(arm.Tag); ok {
		if personality, ok := registry.FindOperatingSystem(loader, armArch); ok {
			logger.Info("Operating system personality",
				log.String("name", personality.Name()))
		}
	}

	db := textdb.New(logger, registry)
	db.SetDocument(doc)
	if err := db.Create(opts.Output, opts.Force); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}

	logger.Info("Database written", log.String("file", opts.Output))
	return nil
}
