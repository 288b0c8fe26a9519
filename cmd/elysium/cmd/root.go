package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	apiURL   string
	apiToken string
	prefix   string
	certFile string
	keyFile  string
	caFile   string
)

var rootCmd = &cobra.Command{
	Use:   "elysium",
	Short: "Elysium hub auth client",
	Long:  `Serve a hub-authenticated service or inspect tokens against the hub API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Hub API URL (defaults to ELYSIUM_API_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Service API token (defaults to ELYSIUM_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "Service URL prefix (defaults to ELYSIUM_SERVICE_PREFIX)")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert", "", "Client certificate for an https hub")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "Client key for an https hub")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca", "", "CA bundle for an https hub")

	viper.SetConfigName("elysium")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.config/elysium")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()
}
