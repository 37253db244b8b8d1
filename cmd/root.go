package cmd

import (
	"fmt"
	"os"

	"github.com/bascanada/logai-mcp/pkg/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logger     log.MyLoggerOptions
)

var rootCmd = &cobra.Command{
	Use:    "logai-mcp",
	Short:  "Log analysis over configured backends, exposed as an MCP server",
	Long:   `Query logs from local files, docker, kubernetes, cloudwatch, loki and ssh backends, mine message templates, detect anomalies and expose it all to AI agents over MCP or HTTP.`,
	PreRun: onCommandStart,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func onCommandStart(cmd *cobra.Command, args []string) {
	log.ConfigureMyLogger(&logger)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config with clients, searches and contexts (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&logger.Path, "logging-path", "", "file to output logs of the application")
	rootCmd.PersistentFlags().StringVar(&logger.Level, "logging-level", "", "logging level to output INFO WARN ERROR DEBUG TRACE")
	rootCmd.PersistentFlags().BoolVar(&logger.Stdout, "logging-stdout", false, "output application log in the stdout")

	_ = rootCmd.RegisterFlagCompletionFunc("logging-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(queryCommand)
	rootCmd.AddCommand(versionCommand)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(mcpCmd)
}
