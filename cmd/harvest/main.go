// Command harvest signs random messages with a Dilithium key and writes the
// equations observed on the mask, for those responses small enough to be
// exploited, as NumPy arrays.
//
//	harvest <masked> <target> <outdir> [workers]
//
// masked is "true" or "1" to sign with the Boolean masked signer. target is the
// number of equations with y = 0 to collect. The optional yaml file named by
// HARVEST_CONFIG sets the remaining options.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newRootCmd(run func(cmd *cobra.Command, a arguments) error) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest <masked> <target> <outdir> [workers]",
		Short: "Collect y = 0 equations from a Dilithium signer",
		Long: `Signs random messages until <target> equations with y = 0 have been
collected, and writes every retained equation to <outdir>:

  poly.npy coeff.npy c.npy z.npy y.npy s1.npy, and bs.npy when masked.

<outdir> is removed first. [workers] defaults to 1.`,
		Args:          cobra.RangeArgs(3, 4),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseArgs(args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return run(cmd, a)
		},
	}
}

// arguments are the positional arguments of the command.
type arguments struct {
	masked  bool
	target  uint64
	outDir  string
	workers int
}

func parseArgs(args []string) (arguments, error) {
	a := arguments{
		masked:  args[0] == "true" || args[0] == "1",
		outDir:  args[2],
		workers: 1,
	}
	var err error
	if a.target, err = strconv.ParseUint(args[1], 10, 64); err != nil {
		return a, fmt.Errorf("invalid target %q: %w", args[1], err)
	}
	if len(args) == 4 {
		w, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil || w == 0 {
			return a, fmt.Errorf("invalid worker count %q", args[3])
		}
		a.workers = int(w)
	}
	return a, nil
}

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
