package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/garnet/interp"
	"github.com/chazu/garnet/irtext"
	"github.com/chazu/garnet/opt"
	"github.com/chazu/garnet/persist"
)

func newDumpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <program.yaml>",
		Short: "Print the IR of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := irtext.ParseFile(args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), p.Main)
		},
	}
}

func newOptCommand(opts *rootOptions) *cobra.Command {
	var (
		passes []string
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "opt <program.yaml>",
		Short: "Optimize a program and print the result",
		Long: `Run the optimizer pipeline over every scope of a program.

Passes and limits come from the [optimizer] section of garnet.toml;
--passes overrides the pass list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := irtext.ParseFile(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.newRuntime(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			o := opts.cfg.OptimizerOptions()
			if cmd.Flags().Changed("passes") {
				o.Passes = passes
			}
			pipe, err := opt.NewPipeline(o, rt, p.Resolve)
			if err != nil {
				return err
			}
			st := pipe.Run(p.Main)
			if stats {
				fmt.Fprintf(cmd.ErrOrStderr(), "scopes=%d iterations=%d inlined=%d folded=%d propagated=%d removed=%d\n",
					st.Scopes, st.Iterations, st.Inlined, st.Folded, st.Propagated, st.Removed)
			}
			return opts.print(cmd.OutOrStdout(), p.Main)
		},
	}
	cmd.Flags().StringSliceVar(&passes, "passes", nil, "comma-separated passes to run (inline, constprop, dce)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print pass statistics to stderr")
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		optimize bool
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "run <program.yaml>",
		Short: "Evaluate a program and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := irtext.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rt, err := opts.newRuntime(out)
			if err != nil {
				return err
			}
			if optimize {
				pipe, err := opt.NewPipeline(opts.cfg.OptimizerOptions(), rt, p.Resolve)
				if err != nil {
					return err
				}
				pipe.Run(p.Main)
			}
			v, err := interp.New(rt).Run(p.Main)
			if stats {
				s := rt.Stats()
				fmt.Fprintf(cmd.ErrOrStderr(), "cache=%s full-lookups=%d searches=%d\n", rt.CacheMode(), s.FullLookups, s.Searches)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "=> %s\n", rt.Inspect(v))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&optimize, "optimize", "O", false, "optimize before running")
	cmd.Flags().BoolVar(&stats, "stats", false, "print call-site cache statistics to stderr")
	return cmd
}

func newEncodeCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "encode <program.yaml>",
		Short: "Write the canonical CBOR encoding of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := irtext.ParseFile(args[0])
			if err != nil {
				return err
			}
			data, err := persist.Encode(p.Main)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("cannot write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")
	return cmd
}

func newDecodeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <program.cbor>",
		Short: "Print the IR stored in an encoded program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			s, err := persist.Decode(data)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), s)
		},
	}
}

func newHashCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <program.yaml>...",
		Short: "Print the content hash of programs",
		Long: `Print the SHA-256 of each program's canonical encoding. Scope
identities are left out, so equal programs hash equal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				p, err := irtext.ParseFile(path)
				if err != nil {
					return err
				}
				sum, err := persist.Hash(p.Main)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hex.EncodeToString(sum[:]), path)
			}
			return nil
		},
	}
}
