// Package launcher brings up a benchmark fleet of one coordinator and N
// workers, keeps it running and tears it down again.
//
// # Quick Start
//
//	topo, err := topology.Load("fleet.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := launcher.NewSupervisor(&procmgr.ExecLauncher{},
//	    launcher.WithConfig(launcher.Config{GracePeriod: 10 * time.Second}),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	report, err := s.Run(ctx, topo)
//
// # Run Phases
//
// Run validates the topology and allocates an address and MAC for every
// node, the coordinator first. The coordinator's config is rendered and it
// is started; workers are only started once it passed its readiness probe.
// Worker configs carry the coordinator address. Workers start concurrently
// and failures are recorded per node without stopping the others.
//
// The fleet then runs until ctx is cancelled or the coordinator exits.
// Teardown always runs: workers are stopped concurrently, then the
// coordinator, each with its own grace period before it is killed.
// KillAll cuts every grace period short.
//
// # Readiness
//
// TCPProbe (default) waits for the node's RPC port to accept connections.
// SettleDelay treats a node as ready once it stayed up for a while, and
// ProcessAlive as soon as it was spawned. Probes fail fast when the node
// exits.
//
// # Errors
//
// Run fatal errors are returned from Run; per node errors are attached to
// the Report. Both are LauncherErrors carrying an operator suggestion:
//
//	if launcher.IsErrorCode(err, launcher.ErrorCodeStartupTimeout) {
//	    fmt.Println(launcher.GetSuggestion(err))
//	}
package launcher
