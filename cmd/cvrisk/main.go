package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/liamcoop/cvrisk/assessment"
	"github.com/liamcoop/cvrisk/client"
	"github.com/liamcoop/cvrisk/mapper"
	"github.com/liamcoop/cvrisk/rules"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Exit codes
const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

type evaluateOptions struct {
	form    bool
	remote  string
	timeout time.Duration
}

// FormResult is printed by evaluate --form
type FormResult struct {
	Derived mapper.Derived      `json:"derived"`
	Input   rules.ClinicalInput `json:"input"`
	Verdict *rules.Verdict      `json:"verdict"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cvrisk",
		Short:         "Cardiovascular risk stratification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvaluateCmd(), newExplainCmd(), newRulesCmd())
	return root
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Evaluate a clinical input (or wizard form with --form) read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.form, "form", false, "Treat the input as wizard form data")
	cmd.Flags().StringVar(&opts.remote, "remote", "", "Base URL of a cvrisk server to evaluate against")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Timeout for --remote requests")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string, opts *evaluateOptions) error {
	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.form {
		var in rules.ClinicalInput
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("failed to parse clinical input: %w", err)
		}
		verdict, err := evaluate(ctx, opts, in)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), verdict)
	}

	var form mapper.FormData
	if err := json.Unmarshal(data, &form); err != nil {
		return fmt.Errorf("failed to parse form data: %w", err)
	}
	today := time.Now()
	in := mapper.BuildInput(form, today)
	verdict, err := evaluate(ctx, opts, in)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), FormResult{
		Derived: mapper.Derive(form, today),
		Input:   in,
		Verdict: verdict,
	})
}

// evaluate runs locally unless a remote server is given
func evaluate(ctx context.Context, opts *evaluateOptions, in rules.ClinicalInput) (*rules.Verdict, error) {
	if opts.remote != "" {
		c := client.New(opts.remote, client.WithTimeout(opts.timeout))
		return c.Assess(ctx, in)
	}

	svc, err := localService()
	if err != nil {
		return nil, err
	}
	rec, err := svc.Assess(ctx, in)
	if err != nil {
		return nil, err
	}
	return rec.Verdict, nil
}

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [file]",
		Short: "Show how every rule evaluates against a clinical input",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var in rules.ClinicalInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("failed to parse clinical input: %w", err)
			}

			svc, err := localService()
			if err != nil {
				return err
			}
			results, err := svc.Explain(context.Background(), in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newRulesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the rule catalogue as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue := rules.DefaultCatalogue()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), catalogue)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(catalogue); err != nil {
				return fmt.Errorf("failed to encode catalogue: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	return cmd
}

func localService() (*assessment.Service, error) {
	engine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule catalogue: %w", err)
	}
	return assessment.NewService(engine, assessment.NewInMemoryStore()), nil
}

// readInput reads the named file, or stdin when no file (or "-") is given
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
