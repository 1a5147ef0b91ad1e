// Package main provides a CLI tool for inspecting and splicing IDML
// packages. It is a thin wrapper: all behavior lives in pkg/idml.
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/dimelords/idmlsplice/pkg/idml"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	idmlPath := flag.String("idml", "", "Path to IDML file (required)")
	list := flag.Bool("list", false, "List spreads, stories, and font families")
	structureFlag := flag.Bool("structure", false, "Print the exported XML structure")
	export := flag.Bool("export", false, "Print the exported logical content XML")
	storyID := flag.String("story-id", "", "Print the text content of the element carrying this Self token")
	prefix := flag.String("prefix", "", "Prefix every identifier token by this string")
	insert := flag.String("insert", "", "Path to a donor IDML file to splice from")
	at := flag.String("at", "", "Recipient XPath-lite slot to graft into (with -insert)")
	only := flag.String("only", "", "Donor XPath-lite subtree to graft (with -insert)")
	out := flag.String("out", "", "Output path for -prefix or -insert")

	flag.Parse()

	if *idmlPath == "" {
		slog.Error("idml flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if _, err := os.Stat(*idmlPath); os.IsNotExist(err) {
		slog.Error("IDML file not found", "path", *idmlPath)
		os.Exit(1)
	}

	pkg, err := idml.Open(*idmlPath)
	if err != nil {
		slog.Error("failed to open IDML file", "error", err, "path", *idmlPath)
		os.Exit(1)
	}
	defer pkg.Close()

	switch {
	case *list:
		listPackage(pkg)
	case *structureFlag:
		printStructure(pkg)
	case *export:
		printExport(pkg)
	case *storyID != "":
		printStoryContent(pkg, *storyID)
	case *prefix != "":
		runPrefix(pkg, *prefix, *out)
	case *insert != "":
		runInsert(pkg, *insert, *at, *only, *out)
	default:
		slog.Error("no command specified: use -list, -structure, -export, -story-id, -prefix, or -insert")
		flag.Usage()
		os.Exit(1)
	}
}

func listPackage(pkg *idml.Package) {
	spreads, err := pkg.Spreads()
	if err != nil {
		slog.Error("failed to list spreads", "error", err)
		os.Exit(1)
	}
	stories, err := pkg.Stories()
	if err != nil {
		slog.Error("failed to list stories", "error", err)
		os.Exit(1)
	}
	fonts, err := pkg.FontFamilies()
	if err != nil {
		slog.Error("failed to list font families", "error", err)
		os.Exit(1)
	}

	slog.Info("spreads", "count", len(spreads), "paths", strings.Join(spreads, ", "))
	slog.Info("stories", "count", len(stories), "paths", strings.Join(stories, ", "))
	slog.Info("font families", "count", len(fonts), "names", strings.Join(fonts, ", "))
}

func printStructure(pkg *idml.Package) {
	data, err := pkg.XMLStructure()
	if err != nil {
		slog.Error("failed to export structure", "error", err)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}

func printExport(pkg *idml.Package) {
	data, err := pkg.ExportXML()
	if err != nil {
		slog.Error("failed to export logical content", "error", err)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}

func printStoryContent(pkg *idml.Package, token string) {
	content, err := pkg.GetStoryContentByID(token)
	if err != nil {
		slog.Error("failed to get story content", "error", err, "self", token)
		os.Exit(1)
	}
	os.Stdout.WriteString(content)
}

func runPrefix(pkg *idml.Package, prefix, out string) {
	if out == "" {
		slog.Error("-out is required with -prefix")
		os.Exit(1)
	}
	if err := pkg.Prefix(prefix); err != nil {
		slog.Error("failed to prefix package", "error", err, "prefix", prefix)
		os.Exit(1)
	}
	if err := pkg.SaveToPath(out); err != nil {
		slog.Error("failed to save package", "error", err, "path", out)
		os.Exit(1)
	}
	slog.Info("prefixed package written", "prefix", prefix, "output", out)
}

func runInsert(pkg *idml.Package, donorPath, at, only, out string) {
	if at == "" || only == "" || out == "" {
		slog.Error("-at, -only, and -out are all required with -insert")
		os.Exit(1)
	}
	donor, err := idml.Open(donorPath)
	if err != nil {
		slog.Error("failed to open donor IDML file", "error", err, "path", donorPath)
		os.Exit(1)
	}
	defer donor.Close()

	if err := pkg.InsertIDML(donor, at, only); err != nil {
		slog.Error("failed to insert donor content", "error", err, "at", at, "only", only)
		os.Exit(1)
	}
	if err := pkg.SaveToPath(out); err != nil {
		slog.Error("failed to save package", "error", err, "path", out)
		os.Exit(1)
	}
	slog.Info("spliced package written", "donor", donorPath, "at", at, "only", only, "output", out)
}
