/*
Package cli provides the helpers shared by the recordstore commands.

Output Formatting:

Command results can be written as text, JSON or YAML:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, result)

Progress Reporting:

Bulk operations such as catalog seeding render a progress bar:

	progress := cli.NewProgressReporter(os.Stderr, "Seeding")
	progress.Start(int64(len(items)))
	for range items {
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

The run command stops on SIGINT or SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background(), logger)
	defer stop()

Exit Codes:

ExitCode maps a command error to the process exit code. Configuration
errors exit with ExitConfig so deployment tooling can tell them apart
from runtime failures.
*/
package cli
