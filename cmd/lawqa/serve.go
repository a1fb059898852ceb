package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/lawdata"
	"github.com/brunobiangulo/lawqa/reference"
	"github.com/brunobiangulo/lawqa/server"
)

func serveCmd() *cobra.Command {
	var addr, laws string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve citation resolution over HTTP",
		Long: `Serve POST /resolve, POST /context and GET /health over one set of laws.

Set LAWQA_API_KEY to require a bearer token and LAWQA_CORS_ORIGINS to allow
browser clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if laws == "" {
				laws = cfg.Server.LawFile
			}
			if laws == "" {
				return fmt.Errorf("--laws or server.law_file is required")
			}

			records, err := loadRecords(cmd.Context(), cfg, laws)
			if err != nil {
				return err
			}
			ix := lawdata.NewIndex(records)
			resolver := reference.NewResolver(ix,
				reference.Options{KeepSuffix: cfg.Context.KeepSuffix}, cfg.Context.Separator)

			srv := server.New(resolver, server.Options{
				APIKey:      cfg.Server.APIKey,
				CORSOrigins: cfg.Server.CORSOrigins,
				Context: dataset.ContextOptions{
					Concurrency:    cfg.Context.Concurrency,
					ReviewFallback: cfg.Context.ReviewFallback,
				},
				Sections: ix.Len(),
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&laws, "laws", "", "Law file or ingested source name")
	return cmd
}
