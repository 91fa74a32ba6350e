// cmd/pierre-cli is the administrative collaborator spec §6 describes:
// create users/tenants, issue/revoke admin JWTs, rotate a tenant's
// master-key-wrapped encryption key. It is not part of the running
// server — every subcommand opens its own store connection, runs one
// operation, and exits. Grounded on dex's cmd/first-auth (cobra root
// command, one file per subcommand); connection settings come from the
// environment via config.Load, not from flags.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pierre-platform/pierre/pkg/errx"
)

// Exit codes per spec §6: 0 success, 1 usage, 2 operational failure,
// 3 precondition (e.g. master key missing/invalid).
const (
	exitOK           = 0
	exitUsage        = 1
	exitOperational  = 2
	exitPrecondition = 3
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pierre-cli",
		Short:         "Administrative CLI for the pierre trust and tool dispatch plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newUserCmd())
	root.AddCommand(newTenantCmd())
	root.AddCommand(newAdminCmd())
	root.AddCommand(newKeyCmd())
	return root
}

// exitCodeFor classifies an error into spec §6's three non-zero exit
// codes. Cobra's own flag-parsing/arg-count errors (unknown command,
// missing required flag) arrive as plain errors and fall through to
// exitUsage; the precondition/operational split only applies to errors
// this CLI's own command bodies return.
func exitCodeFor(err error) int {
	e, ok := err.(*errx.Error)
	if !ok {
		return exitUsage
	}
	switch e.Code {
	case "CRYPTO_MASTER_KEY_MISSING", "CRYPTO_MASTER_KEY_INVALID":
		return exitPrecondition
	}
	if e.Type == errx.TypeValidation {
		return exitUsage
	}
	return exitOperational
}
