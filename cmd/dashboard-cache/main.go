// Command dashboard-cache clears dashboard cache entries from the shell.
//
//	dashboard-cache --all
//	dashboard-cache --branch 7
//	dashboard-cache --business 3 --progress-only
//	dashboard-cache --branch 7 --activity-only --dry-run
//
// With INVALIDATION_TRANSPORT set the clear is also published, so processes
// holding their own in-memory store evict too.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"lms-dashboard/application/services"
	"lms-dashboard/infrastructure/config"
	"lms-dashboard/infrastructure/di"
	"lms-dashboard/pkg/utils"
)

// cacheClearer runs operator clears
type cacheClearer interface {
	ExecuteClear(ctx context.Context, req services.ClearRequest) (services.ClearResult, error)
}

// parseFlags maps the command line onto a clear request
func parseFlags(args []string, stderr io.Writer) (services.ClearRequest, bool, error) {
	var (
		req        services.ClearRequest
		branchID   int64
		businessID int64
		asJSON     bool
	)

	fs := flag.NewFlagSet("dashboard-cache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&req.All, "all", false, "clear every dashboard cache entry")
	fs.Int64Var(&branchID, "branch", 0, "invalidate dashboard data for a branch")
	fs.Int64Var(&businessID, "business", 0, "invalidate dashboard data for a business")
	fs.BoolVar(&req.ProgressOnly, "progress-only", false, "only clear progress entries")
	fs.BoolVar(&req.ActivityOnly, "activity-only", false, "only clear activity entries")
	fs.BoolVar(&req.DryRun, "dry-run", false, "print what would be cleared without clearing")
	fs.BoolVar(&asJSON, "json", false, "print the result as JSON")

	if err := fs.Parse(args); err != nil {
		return req, false, err
	}
	if fs.NArg() > 0 {
		return req, false, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "branch":
			req.BranchID = &branchID
		case "business":
			req.BusinessID = &businessID
		}
	})
	return req, asJSON, utils.ValidateStruct(req)
}

// run parses args, executes the clear and reports it on stdout
func run(ctx context.Context, args []string, clearer cacheClearer, stdout, stderr io.Writer) error {
	req, asJSON, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	result, err := clearer.ExecuteClear(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	verb := "Cleared"
	if result.DryRun {
		verb = "Would clear"
	}
	for _, action := range result.Actions {
		fmt.Fprintf(stdout, "%s: %s\n", verb, action)
	}
	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	err = run(ctx, os.Args[1:], container.Coordinator, os.Stdout, os.Stderr)
	cleanup()
	_ = container.Logger.Sync()

	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "dashboard-cache: %v\n", err)
		os.Exit(1)
	}
}
