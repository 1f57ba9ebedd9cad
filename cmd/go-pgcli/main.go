package main

import (
	"fmt"
	"log"
	"os"

	"go-pgcli/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	host       string
	port       int
	username   string
	password   string
	database   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "go-pgcli",
	Short: "A PostgreSQL CLI client in Go",
	Long:  `A command line client for PostgreSQL with interactive prompt support and context-aware completion.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If database is provided as arg
		if len(args) > 0 {
			database = args[0]
		}

		if err := cli.Start(cli.Options{
			Host:       host,
			Port:       port,
			Username:   username,
			Password:   password,
			Database:   database,
			ConfigFile: configFile,
		}); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&host, "host", "", "", "Host address of the database")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Port number to use for connection")
	rootCmd.Flags().StringVarP(&username, "username", "U", "", "User name to connect to the database")
	rootCmd.Flags().StringVarP(&password, "password", "W", "", "Password to connect to the database")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "Database to use")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to go-pgcli config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
