// normlex is the command-line interface to the conflict resolution engine.
// It loads framework definitions from JSON files and runs detection,
// strategy suggestion or resolution locally, without a server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"normlex/internal/detection"
	"normlex/internal/resolution"
	"normlex/pkg/types"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "detect":
		err = runDetect(os.Args[2:])
	case "resolve":
		err = runResolve(os.Args[2:])
	case "strategies":
		err = runStrategies(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		errColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `normlex - normative conflict resolution engine

Usage:
  normlex detect     -frameworks <file.json> [-min-confidence 0.6]
  normlex resolve    -frameworks <file.json> -type <conflict_type> [-severity high] [-json]
  normlex strategies -type <conflict_type>

The frameworks file holds a JSON array of normative frameworks. detect
analyzes every pair; resolve resolves the first two frameworks in the file
against the given conflict type.`)
}

func loadFrameworks(path string) ([]types.NormativeFramework, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator flag
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var frameworks []types.NormativeFramework
	if err := json.Unmarshal(data, &frameworks); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return frameworks, nil
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	path := fs.String("frameworks", "", "Path to frameworks JSON file")
	minConfidence := fs.Float64("min-confidence", 0.6, "Confidence floor for reported conflicts")
	asJSON := fs.Bool("json", false, "Emit raw JSON")
	_ = fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-frameworks is required")
	}
	frameworks, err := loadFrameworks(*path)
	if err != nil {
		return err
	}

	detector := detection.NewDetector(detection.WithMinConfidence(*minConfidence))
	result, err := detector.DetectConflicts(context.Background(), frameworks)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	headerColor.Printf("Analyzed %d frameworks in %s\n", result.TotalFrameworks, result.ProcessingTime)
	if result.ConflictsFound == 0 {
		okColor.Println("No conflicts found.")
		return nil
	}

	warnColor.Printf("%d conflicts found:\n", result.ConflictsFound)
	for i := range result.Conflicts {
		c := &result.Conflicts[i]
		fmt.Printf("  [%s/%s] %s (confidence %.2f)\n", c.ConflictType, c.Severity, c.Description, c.Confidence)
	}
	return nil
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	path := fs.String("frameworks", "", "Path to frameworks JSON file")
	conflictType := fs.String("type", string(types.ConflictJurisdictionalOverlap), "Conflict type")
	severity := fs.String("severity", string(types.SeverityMedium), "Conflict severity")
	asJSON := fs.Bool("json", false, "Emit raw JSON")
	_ = fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-frameworks is required")
	}
	frameworks, err := loadFrameworks(*path)
	if err != nil {
		return err
	}
	if len(frameworks) < 2 {
		return fmt.Errorf("resolve needs at least two frameworks, got %d", len(frameworks))
	}

	ct := types.ConflictType(*conflictType)
	if !ct.Valid() {
		return fmt.Errorf("unknown conflict type %q", *conflictType)
	}
	sev := types.ConflictSeverity(*severity)
	if !sev.Valid() {
		return fmt.Errorf("unknown severity %q", *severity)
	}

	conflict := &types.NormativeConflict{
		ID:           "cli",
		ConflictType: ct,
		Severity:     sev,
		Description:  fmt.Sprintf("%s conflict between %q and %q", ct, frameworks[0].Title, frameworks[1].Title),
		FrameworkIDs: []string{frameworks[0].ID, frameworks[1].ID},
		Confidence:   1.0,
	}

	resolver := resolution.NewResolver()
	result, err := resolver.ResolveConflictAdvanced(context.Background(), conflict, &frameworks[0], &frameworks[1])
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	headerColor.Printf("Resolved %s conflict\n", ct)
	okColor.Printf("  strategy:   %s\n", result.StrategyUsed)
	okColor.Printf("  confidence: %.2f\n", result.ConfidenceScore)
	fmt.Printf("  framework:  %s\n", result.ResolvedFramework.Title)
	fmt.Printf("  notes:      %s\n", result.ResolutionNotes)
	return nil
}

func runStrategies(args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ExitOnError)
	conflictType := fs.String("type", "", "Conflict type")
	_ = fs.Parse(args)

	ct := types.ConflictType(*conflictType)
	if !ct.Valid() {
		return fmt.Errorf("unknown conflict type %q", *conflictType)
	}

	resolver := resolution.NewResolver()
	strategies, err := resolver.SuggestResolutionStrategies(&types.NormativeConflict{ConflictType: ct})
	if err != nil {
		return err
	}

	headerColor.Printf("Strategies for %s (in priority order):\n", ct)
	for i, s := range strategies {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
	return nil
}
