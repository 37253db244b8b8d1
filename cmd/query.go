package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/client/config"
	"github.com/bascanada/logai-mcp/pkg/log/factory"
	"github.com/bascanada/logai-mcp/pkg/log/printer"
	"github.com/bascanada/logai-mcp/pkg/ty"

	"github.com/spf13/cobra"
)

var (
	contextIds []string
	inherits   []string
	vars       []string

	fields    []string
	fieldsOps []string

	from string
	to   string
	last string

	size       int
	groupRegex string
	kvRegex    string

	duration string
	refresh  bool

	template   string
	jsonOutput bool
)

func stringArrayEnvVariable(strs []string, maps *ty.MS) {
	for _, f := range strs {
		if strings.Contains(f, "=") {
			items := strings.SplitN(f, "=", 2)
			(*maps)[items[0]] = items[1]
		}
	}
}

func parseRuntimeVars() map[string]string {
	out := map[string]string{}
	for _, v := range vars {
		if strings.Contains(v, "=") {
			items := strings.SplitN(v, "=", 2)
			out[items[0]] = items[1]
		}
	}
	return out
}

// buildSearchRequest creates a LogSearch from CLI flags.
func buildSearchRequest() client.LogSearch {
	searchRequest := client.LogSearch{
		Fields:          ty.MS{},
		FieldsCondition: ty.MS{},
		Options:         ty.MI{},
	}

	if size > 0 {
		searchRequest.Size.S(size)
	}
	if duration != "" {
		searchRequest.Refresh.Duration.S(duration)
	}
	if groupRegex != "" {
		searchRequest.FieldExtraction.GroupRegex.S(groupRegex)
	}
	if kvRegex != "" {
		searchRequest.FieldExtraction.KvRegex.S(kvRegex)
	}
	if to != "" {
		normalizedTo, _ := ty.NormalizeTimeValue(to)
		searchRequest.Range.Lte.S(normalizedTo)
	}
	if from != "" {
		normalizedFrom, _ := ty.NormalizeTimeValue(from)
		searchRequest.Range.Gte.S(normalizedFrom)
	}
	if last != "" {
		searchRequest.Range.Last.S(last)
	}
	if len(fields) > 0 {
		stringArrayEnvVariable(fields, &searchRequest.Fields)
	}
	if len(fieldsOps) > 0 {
		stringArrayEnvVariable(fieldsOps, &searchRequest.FieldsCondition)
	}
	if template != "" {
		searchRequest.PrinterOptions.Template.S(template)
	}

	searchRequest.Follow = refresh

	return searchRequest
}

func getSearchFactory() (*config.ContextConfig, factory.SearchFactory, error) {
	cfg, err := config.LoadContextConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	backendFactory, err := factory.GetLogBackendFactory(cfg.Clients)
	if err != nil {
		return nil, nil, err
	}

	searchFactory, err := factory.GetLogSearchFactory(backendFactory, *cfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, searchFactory, nil
}

func resolveSearch() (client.LogSearchResult, error) {
	if len(contextIds) == 0 {
		return nil, errors.New("no context specified; use -i to select a context")
	}

	cfg, searchFactory, err := getSearchFactory()
	if err != nil {
		return nil, err
	}

	searchRequest := buildSearchRequest()
	runtimeVars := parseRuntimeVars()

	for _, id := range contextIds {
		if _, ok := cfg.Contexts[id]; !ok {
			return nil, contextNotFoundError(id, cfg.ContextIds())
		}
	}

	ctx := context.Background()

	if len(contextIds) == 1 {
		return searchFactory.GetSearchResult(ctx, contextIds[0], inherits, searchRequest, runtimeVars)
	}

	multiResult, err := client.NewMultiLogSearchResult(&searchRequest)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	for _, contextID := range contextIds {
		wg.Add(1)
		go func(cid string) {
			defer wg.Done()
			reqCopy := searchRequest
			reqCopy.Options = ty.MergeM(make(ty.MI, len(searchRequest.Options)+1), searchRequest.Options)
			reqCopy.Options[client.OptionContextID] = cid
			reqCopy.Fields = ty.MergeM(make(ty.MS, len(searchRequest.Fields)), searchRequest.Fields)
			reqCopy.FieldsCondition = ty.MergeM(make(ty.MS, len(searchRequest.FieldsCondition)), searchRequest.FieldsCondition)

			sr, err := searchFactory.GetSearchResult(context.Background(), cid, inherits, reqCopy, runtimeVars)
			multiResult.Add(sr, err)
		}(contextID)
	}
	wg.Wait()

	return multiResult, nil
}

func contextNotFoundError(id string, known []string) error {
	suggestions := suggestSimilar(id, known, 3)
	if len(suggestions) > 0 {
		return fmt.Errorf("context '%s' not found, did you mean: %s", id, strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("context '%s' not found", id)
}

var queryLogCommand = &cobra.Command{
	Use:    "log",
	Short:  "Display logs for a configured context",
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		searchResult, err := resolveSearch()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			entries, c, err := searchResult.GetEntries(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			printJSON := func(es []client.LogEntry) error {
				for i := range es {
					if err := enc.Encode(es[i]); err != nil {
						return err
					}
				}
				return nil
			}

			if err := printJSON(entries); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
				os.Exit(1)
			}
			if c != nil {
				for newEntries := range c {
					if err := printJSON(newEntries); err != nil {
						fmt.Fprintf(os.Stderr, "Error writing streaming JSON output: %v\n", err)
						break
					}
				}
			}
			return
		}

		outputter := printer.PrintPrinter{}
		continuous, err := outputter.Display(context.Background(), searchResult)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying logs: %v\n", err)
			os.Exit(1)
		}
		if continuous {
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			<-c
		}
	},
}

var queryFieldCommand = &cobra.Command{
	Use:    "field",
	Short:  "Display available fields for filtering of logs",
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		searchResult, err := resolveSearch()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		searchResult.GetEntries(context.Background())
		fields, _, err := searchResult.GetFields(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Printf("%s \n", k)
			for _, r := range fields[k] {
				fmt.Println("    " + r)
			}
		}
	},
}

var queryContextsCommand = &cobra.Command{
	Use:    "contexts",
	Short:  "List the contexts available in the configuration",
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadContextConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}

		ids := cfg.ContextIds()
		sort.Strings(ids)
		for _, id := range ids {
			sc := cfg.Contexts[id]
			if sc.Description != "" {
				fmt.Printf("%s (%s) %s\n", id, sc.Client, sc.Description)
			} else {
				fmt.Printf("%s (%s)\n", id, sc.Client)
			}
		}
	},
}

var queryCommand = &cobra.Command{
	Use:    "query",
	Short:  "Query a configured context for logs and available fields",
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	queryCommand.PersistentFlags().StringArrayVarP(&contextIds, "id", "i", []string{}, "Context id to execute")
	queryCommand.PersistentFlags().StringArrayVar(&inherits, "inherits", []string{}, "Searches to inherit from")
	queryCommand.PersistentFlags().StringArrayVar(&vars, "var", []string{}, "Runtime variables key=value")

	queryCommand.PersistentFlags().StringArrayVarP(&fields, "field", "f", []string{}, "Field filter key=value")
	queryCommand.PersistentFlags().StringArrayVar(&fieldsOps, "field-condition", []string{}, "Field condition key=operator (match, regex, notEquals)")

	queryCommand.PersistentFlags().StringVar(&from, "from", "", "Get entries gte this date")
	queryCommand.PersistentFlags().StringVar(&to, "to", "", "Get entries lte this date")
	queryCommand.PersistentFlags().StringVar(&last, "last", "", "Get entries in the last duration (5m, 1h)")
	queryCommand.PersistentFlags().IntVar(&size, "size", 0, "Maximum number of entries to return")

	queryCommand.PersistentFlags().StringVar(&groupRegex, "group-regex", "", "Named group regex to extract fields from messages")
	queryCommand.PersistentFlags().StringVar(&kvRegex, "kv-regex", "", "Key value regex to extract fields from messages")

	queryCommand.PersistentFlags().BoolVarP(&refresh, "refresh", "r", false, "Keep the query running, streaming new entries")
	queryCommand.PersistentFlags().StringVar(&duration, "refresh-duration", "", "Interval between refreshes of the query")

	queryCommand.PersistentFlags().StringVarP(&template, "template", "t", "", "Template to display log entries")
	queryCommand.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output entries as NDJSON")

	_ = queryCommand.RegisterFlagCompletionFunc("id", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.LoadContextConfig(configPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		var suggestions []string
		for id, sc := range cfg.Contexts {
			suggestions = append(suggestions, fmt.Sprintf("%s\t(%s)", id, sc.Client))
		}
		return suggestions, cobra.ShellCompDirectiveNoFileComp
	})

	queryCommand.AddCommand(queryLogCommand)
	queryCommand.AddCommand(queryFieldCommand)
	queryCommand.AddCommand(queryContextsCommand)
}
