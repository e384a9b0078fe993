// Package bootstrap hosts pipelines in a long-running or one-shot process.
//
// An App validates its configuration, initializes the logger, registers
// the telemetry component and runs every added pipeline as a
// stream.Runner inside a component.Registry. SIGINT and SIGTERM cancel
// the running pipelines, which end with CANCELLATION_REQUESTED.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	if _, err := app.AddPipeline(stages, stream.WithName("pack")); err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// Run returns once every pipeline finished or a shutdown was requested,
// after a graceful stop of all components and a run summary.
package bootstrap
