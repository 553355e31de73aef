// Command engine-demo drives the semantics engine against a YAML
// language bundle: validate a bundle, parse and print terms against it,
// and reduce a start term to its normal forms.
//
// The engine core never logs (the trace flag is confined to this driver).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/expr"
	"github.com/dkellis-lab/semlab/internal/langcfg"
	"github.com/dkellis-lab/semlab/internal/rule"
	"github.com/dkellis-lab/semlab/internal/sexp"
	"github.com/dkellis-lab/semlab/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "engine-demo",
		Short:         "Exercise a semantics-engine language bundle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCommand(), newParseCommand(), newPrintCommand(), newReduceCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "engine-demo: %v\n", err)
		os.Exit(1)
	}
}

func loadBundle(path string) (*langcfg.Bundle, error) {
	b, err := langcfg.Load(path)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <bundle.yaml>",
		Short: "Validate a language bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(args[0])
			if err != nil {
				return err
			}
			l, err := b.BuildLanguage()
			if err != nil {
				return err
			}
			if _, err := b.BuildRules(l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: language %q, %d spaces, %d rules\n",
				l.Name, len(l.Spaces), len(b.Rules))
			return nil
		},
	}
}

func newParseCommand() *cobra.Command {
	var spaceName string
	cmd := &cobra.Command{
		Use:   "parse <bundle.yaml> <term>",
		Short: "Parse a term against a bundle's language and echo it back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(args[0])
			if err != nil {
				return err
			}
			l, err := b.BuildLanguage()
			if err != nil {
				return err
			}
			d, err := sexp.Parse(args[1], spaceName, l)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sexp.Print(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&spaceName, "space", "", "space to parse against (required)")
	_ = cmd.MarkFlagRequired("space")
	return cmd
}

// newPrintCommand parses a term, prints it, and checks that the printed
// form parses again against the same space; the reparsed value is not
// compared with the original.
func newPrintCommand() *cobra.Command {
	var spaceName string
	cmd := &cobra.Command{
		Use:   "print <bundle.yaml> <term>",
		Short: "Round-trip a term (parse, print, reparse) against a bundle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(args[0])
			if err != nil {
				return err
			}
			l, err := b.BuildLanguage()
			if err != nil {
				return err
			}
			d, err := sexp.Parse(args[1], spaceName, l)
			if err != nil {
				return err
			}
			printed := sexp.Print(d)
			if _, err := sexp.Parse(printed, spaceName, l); err != nil {
				return fmt.Errorf("printed form does not reparse: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), printed)
			return nil
		},
	}
	cmd.Flags().StringVar(&spaceName, "space", "", "space to parse against (required)")
	_ = cmd.MarkFlagRequired("space")
	return cmd
}

func newReduceCommand() *cobra.Command {
	var (
		trace     bool
		maxSteps  int
		termSrc   string
		abstractM bool
		widenN    int
	)
	cmd := &cobra.Command{
		Use:   "reduce <bundle.yaml>",
		Short: "Reduce the bundle's start term to its normal forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelWarn
			if trace {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

			b, err := loadBundle(args[0])
			if err != nil {
				return err
			}
			l, err := b.BuildLanguage()
			if err != nil {
				return err
			}
			rules, err := b.BuildRules(l)
			if err != nil {
				return err
			}
			var s0 store.State
			if termSrc != "" {
				if b.Start == nil {
					return fmt.Errorf("--term given but the bundle names no start space")
				}
				term, err := sexp.Parse(termSrc, b.Start.Space, l)
				if err != nil {
					return err
				}
				s0 = store.State{Term: term, Store: store.Empty()}
			} else {
				s0, err = b.BuildStart(l)
				if err != nil {
					return err
				}
			}
			budget := maxSteps
			if budget == 0 {
				budget = b.MaxSteps
			}

			mode := expr.Concrete
			if abstractM {
				mode = expr.Abstract
			}
			sys := rule.NewSystem(l, mode, rules...)
			if widenN > 0 {
				sys.Widen = abstract.ThresholdPolicy{N: widenN}
			}
			logger.Debug("reducing", "language", l.Name, "rules", len(rules),
				"start", sexp.Print(s0.Term), "budget", budget, "abstract", abstractM)

			if abstractM {
				a0 := store.AbstractState{Term: s0.Term, Store: s0.Store, Count: store.EmptyCount()}
				ex, err := sys.AbstractApplyStarMemo(a0, budget)
				if err != nil {
					return err
				}
				if trace {
					for _, s := range ex.Visited {
						logger.Debug("visited", "term", sexp.Print(s.Term))
					}
				}
				logger.Debug("done", "visited", len(ex.Visited), "normal", len(ex.Normal))
				for _, s := range ex.Normal {
					fmt.Fprintln(cmd.OutOrStdout(), sexp.Print(s.Term))
				}
				return nil
			}

			ex, err := sys.ApplyStarMemo(s0, budget)
			if err != nil {
				return err
			}
			if trace {
				for _, s := range ex.Visited {
					logger.Debug("visited", "term", sexp.Print(s.Term))
				}
			}
			logger.Debug("done", "visited", len(ex.Visited), "normal", len(ex.Normal))
			for _, s := range ex.Normal {
				fmt.Fprintln(cmd.OutOrStdout(), sexp.Print(s.Term))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "log each visited state")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget (overrides the bundle's max-steps)")
	cmd.Flags().StringVar(&termSrc, "term", "", "start term (overrides the bundle's start.term)")
	cmd.Flags().BoolVar(&abstractM, "abstract", false, "run the abstract interpreter")
	cmd.Flags().IntVar(&widenN, "widen-threshold", 0, "widen every address allocated by a rule firing once it allocates more than N (abstract mode)")
	return cmd
}
