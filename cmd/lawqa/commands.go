package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/lawqa"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/parser"
	"github.com/brunobiangulo/lawqa/reference"
)

func ingestCmd() *cobra.Command {
	var (
		name  string
		force bool
		meta  parser.StatuteMeta
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse law documents and store their section records",
		Long: `Parse law documents and store one record per statute section.

Supported formats: JSON law exports, XLSX sheets with record columns, and
TXT, MD, PDF or DOCX statute text split on its section headings.

Example:
  lawqa ingest registration-act.json
  lawqa ingest --law-name "The Registration Act, 1908" act-xvi-1908.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name applies to a single file")
			}
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			opts := []lawqa.IngestOption{lawqa.WithStatuteMeta(meta)}
			if force {
				opts = append(opts, lawqa.WithForceReparse())
			}
			if name != "" {
				opts = append(opts, lawqa.WithSourceName(name))
			}

			for _, path := range args {
				res, err := p.Ingest(cmd.Context(), path, opts...)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Printf("%s: %d records, %d sections (changed: %v)\n",
					res.Source, res.Records, res.Sections, res.Changed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Source name (default: file name without extension)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-parse even if the file is unchanged")
	cmd.Flags().StringVar(&meta.LawNameEN, "law-name", "", "English law name for split statutes")
	cmd.Flags().StringVar(&meta.LawNameBN, "law-name-bn", "", "Bangla law name for split statutes")
	cmd.Flags().StringVar(&meta.RefURL, "ref-url", "", "Source URL recorded on every section")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		restart bool
		limit   int
		export  string
	)
	cmd := &cobra.Command{
		Use:   "generate <source>",
		Short: "Generate QA pairs for an ingested source",
		Long: `Ask the chat model for QA pairs about every section of a source.

Sections that already have pairs from the configured model are skipped, so an
interrupted run can simply be started again.

Example:
  lawqa generate registration-act --export output-data/qa.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			var opts []lawqa.GenerateOption
			if restart {
				opts = append(opts, lawqa.WithRestart())
			}
			if limit > 0 {
				opts = append(opts, lawqa.WithLimit(limit))
			}
			if export != "" {
				opts = append(opts, lawqa.WithExport(export))
			}

			res, err := p.Generate(cmd.Context(), args[0], opts...)
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Regenerate sections that already have pairs")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of sections to send to the model")
	cmd.Flags().StringVar(&export, "export", "", "Append generated pairs to this JSONL file")
	return cmd
}

func contextCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "context <laws> <qa-file>",
		Short: "Fill input_context from each pair's law reference",
		Long: `Resolve the law_reference of every pair against a law file or ingested
source and store the joined section text in input_context.

Pairs whose citation cannot be fully resolved are kept and flagged with
needs_review and diagnostics.

Example:
  lawqa context data/registration-act.json output-data/qa.json -o output-data/qa-context.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[1]
			}
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.SetContext(cmd.Context(), args[0], args[1], out)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: overwrite the input)")
	return cmd
}

func resolveCmd() *cobra.Command {
	var laws string
	cmd := &cobra.Command{
		Use:   "resolve <citation>...",
		Short: "Show the sections a citation resolves to",
		Example: `  lawqa resolve --laws data/registration-act.json "The Registration Act, 1908, Sections 23 and 78A(b)"
  lawqa resolve --laws registration-act "রেজিস্ট্রেশন আইন, ধারা ২৩ ও ২৮"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if laws == "" {
				return fmt.Errorf("--laws is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := loadRecords(cmd.Context(), cfg, laws)
			if err != nil {
				return err
			}
			r := lawqa.NewResolver(records, cfg.Context)

			for _, citation := range args {
				printResult(r.Resolve(citation))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&laws, "laws", "", "Law file or ingested source name")
	return cmd
}

func printResult(res reference.Result) {
	fmt.Printf("citation: %s\n", res.Citation)
	fmt.Printf("  rule:     %s\n", res.Rule)
	fmt.Printf("  sections: %s\n", strings.Join(res.Sections, ", "))
	for _, m := range res.Matches {
		fmt.Printf("  match:    %s  %s  %s\n", m.Section, m.Record.LawName(), m.Record.SectionName())
	}
	if len(res.Missing) > 0 {
		fmt.Printf("  missing:  %s\n", strings.Join(res.Missing, ", "))
	}
	for _, d := range res.Diagnostics {
		fmt.Printf("  problem:  %v\n", d)
	}
	if res.Context != "" {
		fmt.Printf("\n%s\n\n", res.Context)
	}
}

// loadRecords reads laws from a file without touching the database, or from
// the store when laws names an ingested source.
func loadRecords(ctx context.Context, cfg lawqa.Config, laws string) ([]lawdata.LawRecord, error) {
	if _, err := os.Stat(laws); err == nil {
		return lawqa.LoadLaws(ctx, laws, parser.StatuteMeta{})
	}
	p, err := lawqa.New(cfg)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Laws(ctx, laws)
}

func templateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template <qa-file>",
		Short: "Render QA pairs as ChatML training texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Template(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d texts to %s (%d pairs skipped)\n", res.Written, out, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "output-data/dataset-text.jsonl", "Output JSONL file")
	return cmd
}

func dedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Flag duplicate and near-duplicate questions",
		Long: `Embed the questions of pairs not checked before and flag every pair whose
question repeats, or nearly repeats, an earlier one. Pairs that fail the
content checks are flagged as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Dedupe(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func exportCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write stored QA pairs to a JSON or JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := p.Export(cmd.Context(), source, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("exported %d pairs to %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only export pairs of this source")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			stats, err := p.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}
