// Package sync implements page synchronization between the local wiki and
// one remote wiki.
//
// # Runs
//
// An Engine performs runs. Each run moves through the states
//
//	init -> listing -> filtering -> partitioning -> reconciling -> done
//
// and ends in StateAborted instead when a fatal error occurs (see
// model.IsFatal): invalid options, an unknown or unsupported remote, a
// remote that reports a different interwiki name, or a remote that stops
// answering. Failures confined to one page are recorded in the Result and
// the run carries on.
//
//	engine := sync.New(store, home, interwikiMap, dataDir, logger)
//	result, err := engine.Run(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(result.Summary())
//
// # Reconciling
//
// Pages present on both wikis are reconciled in the configured Direction.
// The tag log of each page records the revision pair of the last merge; a
// page whose relevant revisions match its newest tag is skipped. Otherwise
// the remote body, the local body and a base are merged line by line:
//   - DirectionDown saves the merge locally
//   - DirectionUp sends it to the remote and refuses conflicts
//   - DirectionBoth does both, pulling first
//
// Conflicting changes are written to the local page between conflict
// markers and pushed once resolved.
//
// # Progress Reporting
//
// Progress can be tracked by providing a ProgressCallback in Options:
//
//	opts.Progress = func(event sync.ProgressEvent) error {
//	    fmt.Printf("%s %d%%\n", event.Page, event.PercentComplete())
//	    return nil // Return error to cancel the run
//	}
//
// Events are delivered one at a time even when Workers is above one.
package sync
