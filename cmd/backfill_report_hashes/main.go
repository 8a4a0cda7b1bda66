package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/batchflow-backend/internal/app"
)

func main() {
	var dryRun bool
	var limit int
	flag.BoolVar(&dryRun, "dry-run", false, "compute hashes without writing them")
	flag.IntVar(&limit, "limit", 500, "maximum number of reports processed")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if application.Issuance.Pipeline == nil {
		fmt.Println("report storage unavailable (RENDERER_URL and REPORT_GCS_BUCKET_NAME required)")
		os.Exit(1)
	}

	sum, err := application.Issuance.Pipeline.BackfillStoredHashes(ctx, application.Repos.Reports, limit, dryRun)
	if err != nil {
		fmt.Printf("backfill: %v\n", err)
		os.Exit(1)
	}
	for _, id := range sum.Failed {
		fmt.Printf("failed report_id=%s\n", id.String())
	}
	fmt.Printf("done; scanned=%d backfilled=%d no_artifact=%d failed=%d dry_run=%v\n",
		sum.Scanned, sum.Backfilled, sum.NoArtifact, len(sum.Failed), dryRun)
	if len(sum.Failed) > 0 {
		os.Exit(2)
	}
}
