package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/orin/internal/api"
	"github.com/everstacklabs/orin/internal/cache"
	"github.com/everstacklabs/orin/internal/catalog"
	"github.com/everstacklabs/orin/internal/config"
	"github.com/everstacklabs/orin/internal/filter"
	"github.com/everstacklabs/orin/internal/httpclient"
	"github.com/everstacklabs/orin/internal/inspect"
	"github.com/everstacklabs/orin/internal/render"
	"github.com/everstacklabs/orin/internal/scrape"
)

var (
	cfgFile string
	debug   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orin",
		Short: "OpenRouter model and provider inspector",
		Long:  "Lists marketplace models, inspects per-provider offers, and probes live endpoints.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		listCmd(),
		searchCmd(),
		offersCmd(),
		checkCmd(),
		pingCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [filter...]",
		Short: "List models, with optional text filters (AND semantics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}

			format, err := formatFlag(cmd)
			if err != nil {
				return err
			}

			minContext, _ := cmd.Flags().GetInt("min-context")
			tools, _ := cmd.Flags().GetBool("tools")
			noTools, _ := cmd.Flags().GetBool("no-tools")
			withProviders, _ := cmd.Flags().GetBool("with-providers")
			sortBy, _ := cmd.Flags().GetString("sort-by")
			desc, _ := cmd.Flags().GetBool("desc")

			toolFilter, err := filter.TriState("tools", tools, noTools)
			if err != nil {
				return err
			}

			models, err := svc.ListModels(cmd.Context(), args, catalog.SearchFilters{
				MinContext:    minContext,
				SupportsTools: toolFilter,
			}, sortBy, desc)
			if err != nil {
				return err
			}

			var counts map[string]int
			if withProviders && format == render.FormatTable {
				counts, err = svc.ProviderCounts(cmd.Context(), models)
				if err != nil {
					return err
				}
				if strings.EqualFold(sortBy, "providers") {
					sortByCount(models, counts, desc)
				}
			}

			return render.Models(os.Stdout, models, counts, format)
		},
	}

	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	cmd.Flags().Int("min-context", 0, "minimum context window size")
	cmd.Flags().Bool("tools", false, "only models with a tool-calling provider")
	cmd.Flags().Bool("no-tools", false, "only models without tool-calling providers")
	cmd.Flags().Bool("with-providers", false, "show count of active providers per model")
	cmd.Flags().String("sort-by", "id", "sort column (id, name, context, providers)")
	cmd.Flags().Bool("desc", false, "sort in descending order")

	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search models by substring over id and name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}

			format, err := formatFlag(cmd)
			if err != nil {
				return err
			}

			minContext, _ := cmd.Flags().GetInt("min-context")
			tools, _ := cmd.Flags().GetBool("tools")
			noTools, _ := cmd.Flags().GetBool("no-tools")
			reasoning, _ := cmd.Flags().GetBool("reasoning")
			maxPrice, _ := cmd.Flags().GetFloat64("max-price")

			toolFilter, err := filter.TriState("tools", tools, noTools)
			if err != nil {
				return err
			}

			f := catalog.SearchFilters{
				MinContext:    minContext,
				SupportsTools: toolFilter,
				ReasoningOnly: reasoning,
			}
			if cmd.Flags().Changed("max-price") {
				perToken := maxPrice / 1e6
				f.MaxPricePerToken = &perToken
			}

			models, err := svc.Search(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			return render.Models(os.Stdout, models, nil, format)
		},
	}

	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	cmd.Flags().Int("min-context", 0, "minimum context window size")
	cmd.Flags().Bool("tools", false, "require a tool-calling provider")
	cmd.Flags().Bool("no-tools", false, "require no tool-calling provider")
	cmd.Flags().Bool("reasoning", false, "require a reasoning-capable provider")
	cmd.Flags().Float64("max-price", 0, "maximum price per 1M tokens (cheapest rate)")

	return cmd
}

func offersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers MODEL",
		Short: "Show provider offers for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd)
			if err != nil {
				return err
			}

			opts, err := offerFilterOptions(cmd)
			if err != nil {
				return err
			}

			sortBy, _ := cmd.Flags().GetString("sort-by")
			desc, _ := cmd.Flags().GetBool("desc")
			withWeb, _ := cmd.Flags().GetBool("web")

			if !sortKeyValid(sortBy) {
				return fmt.Errorf("unknown sort key %q (want one of %s)", sortBy, strings.Join(filter.SortKeys, ", "))
			}

			svc, err := buildService()
			if err != nil {
				return err
			}

			resolvedID, offers, err := svc.Offers(cmd.Context(), args[0], opts, sortBy, desc, withWeb)
			if err != nil {
				return err
			}
			return render.Offers(os.Stdout, resolvedID, offers, format)
		},
	}

	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	cmd.Flags().String("min-quant", "", "minimum quantization (e.g. fp8); unspecified quant always included")
	cmd.Flags().String("min-context", "", "minimum context window (e.g. 128K or 131072)")
	cmd.Flags().Bool("reasoning", false, "only offers with reasoning support")
	cmd.Flags().Bool("no-reasoning", false, "only offers without reasoning support")
	cmd.Flags().Bool("tools", false, "only offers with tool calling")
	cmd.Flags().Bool("no-tools", false, "only offers without tool calling")
	cmd.Flags().Bool("img", false, "only offers with image input")
	cmd.Flags().Bool("no-img", false, "only offers without image input")
	cmd.Flags().Float64("max-input-price", 0, "maximum prompt price per 1M tokens")
	cmd.Flags().Float64("max-output-price", 0, "maximum completion price per 1M tokens")
	cmd.Flags().String("sort-by", filter.SortKeyAPI, "sort column (api keeps upstream order)")
	cmd.Flags().Bool("desc", false, "sort in descending order")
	cmd.Flags().Bool("web", false, "enrich offers with scraped web metrics")

	return cmd
}

// offerFilterOptions assembles the offer filter set, rejecting
// contradictory flag pairs before any network call happens.
func offerFilterOptions(cmd *cobra.Command) (filter.Options, error) {
	var opts filter.Options
	var err error

	opts.MinQuant, _ = cmd.Flags().GetString("min-quant")
	opts.MinContext, _ = cmd.Flags().GetString("min-context")

	reasoning, _ := cmd.Flags().GetBool("reasoning")
	noReasoning, _ := cmd.Flags().GetBool("no-reasoning")
	if opts.Reasoning, err = filter.TriState("reasoning", reasoning, noReasoning); err != nil {
		return opts, err
	}

	tools, _ := cmd.Flags().GetBool("tools")
	noTools, _ := cmd.Flags().GetBool("no-tools")
	if opts.Tools, err = filter.TriState("tools", tools, noTools); err != nil {
		return opts, err
	}

	img, _ := cmd.Flags().GetBool("img")
	noImg, _ := cmd.Flags().GetBool("no-img")
	if opts.Image, err = filter.TriState("img", img, noImg); err != nil {
		return opts, err
	}

	if cmd.Flags().Changed("max-input-price") {
		p, _ := cmd.Flags().GetFloat64("max-input-price")
		opts.MaxPromptPrice = &p
	}
	if cmd.Flags().Changed("max-output-price") {
		p, _ := cmd.Flags().GetFloat64("max-output-price")
		opts.MaxCompletionPrice = &p
	}

	return opts, nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check MODEL PROVIDER [ENDPOINT]",
		Short: "Report whether a provider's endpoint is functional",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}

			endpoint := ""
			if len(args) == 3 {
				endpoint = args[2]
			}

			state, err := svc.Check(cmd.Context(), args[0], args[1], endpoint)
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping MODEL[@PROVIDER] [PROVIDER]",
		Short: "Probe a live endpoint with a minimal completion",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}

			model, provider := inspect.SplitTarget(args[0])
			if len(args) == 2 {
				provider = args[1]
			}
			timeoutSec, _ := cmd.Flags().GetInt("timeout")

			res := svc.Ping(cmd.Context(), model, provider, time.Duration(timeoutSec)*time.Second)
			fmt.Println(res.Line())
			return nil
		},
	}

	cmd.Flags().Int("timeout", 60, "probe timeout in seconds")

	return cmd
}

func buildService() (*inspect.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var mem *cache.Memory
	if !cfg.NoCache {
		mem = cache.New(cfg.CacheTTL)
	}

	opts := []httpclient.Option{
		httpclient.WithRateLimit(10),
		httpclient.WithTimeout(cfg.Timeout),
	}
	if mem != nil {
		opts = append(opts, httpclient.WithCache(mem))
	} else {
		opts = append(opts, httpclient.WithNoCache())
	}
	client := api.New(cfg.APIKey, cfg.BaseURL, httpclient.New(opts...))

	scrapeOpts := []scrape.Option{scrape.WithTimeout(cfg.WebTimeout)}
	if mem != nil {
		scrapeOpts = append(scrapeOpts, scrape.WithCache(mem))
	}
	scraper := scrape.New(cfg.WebBaseURL, scrapeOpts...)

	return inspect.New(client, inspect.WithScraper(scraper)), nil
}

func formatFlag(cmd *cobra.Command) (render.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	return render.ParseFormat(s)
}

func sortKeyValid(key string) bool {
	for _, k := range filter.SortKeys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

// sortByCount orders models by active provider count, id as tiebreak.
func sortByCount(models []catalog.ModelSummary, counts map[string]int, desc bool) {
	sort.SliceStable(models, func(i, j int) bool {
		ci, cj := counts[models[i].ID], counts[models[j].ID]
		if ci != cj {
			if desc {
				return ci > cj
			}
			return ci < cj
		}
		return models[i].ID < models[j].ID
	})
}
