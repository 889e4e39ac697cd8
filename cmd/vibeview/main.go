package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/vibeview/internal/models"
)

var (
	cfgFile string
	cfg     models.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vibeview",
	Short: "Headless browser shell with request filtering",
	Long: `vibeview drives browser tabs through a Chromium engine, filters their
network requests with Adblock-style rules and replaces failed loads with
local error and offline pages.`,
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/vibeview.toml)")

	runCmd.Flags().StringSlice("url", nil, "pages to open at startup")
	runCmd.Flags().String("home", "about:blank", "page opened when nothing else is restored")
	runCmd.Flags().Bool("restore", true, "reopen tabs from the last unclean exit")
	runCmd.Flags().Bool("headful", false, "show the browser window")

	rulesCheckCmd.Flags().Bool("data-saver", false, "evaluate with data saver enabled")
	rulesUpdateCmd.Flags().Bool("reload", true, "reload rules after downloading")
	rulesCmd.AddCommand(rulesListCmd, rulesCheckCmd, rulesAddCmd, rulesReloadCmd, rulesUpdateCmd)

	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd, sessionsRestoreInfoCmd)

	historyListCmd.Flags().IntP("limit", "n", 20, "number of entries to show, 0 for all")
	historyCmd.AddCommand(historyListCmd, historySearchCmd, historyClearCmd)

	rootCmd.AddCommand(initCmd, runCmd, rulesCmd, sessionsCmd, historyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vibeview")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(dir + "/vibeview")
		}
	}

	viper.SetEnvPrefix("VIBEVIEW")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	setDefaults(models.DefaultConfig())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/vibeview.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := renderDefaultConfig()
	if err != nil {
		return err
	}
	if err := writeConfigFile(configPath, data); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}
