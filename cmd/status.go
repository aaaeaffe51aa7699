package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/confidant/internal/config"
	"github.com/crystaldolphin/confidant/internal/providers"
	"github.com/crystaldolphin/confidant/internal/shared/cmdutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resolved settings",
	RunE:  runStatus,
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Printf("%s confidant status\n\n", cmdutils.Logo())
	fmt.Printf("Config:    %s %s\n", cfgPath, mark(exists(cfgPath)))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	a := cfg.Agents.Defaults
	fmt.Printf("Workspace: %s %s\n", ws, mark(exists(ws)))
	fmt.Printf("Prompts:   %s %s\n", cfg.WorkspaceFile(a.PromptsDir), mark(exists(cfg.WorkspaceFile(a.PromptsDir))))
	fmt.Printf("Model:     %s (choices: %v)\n", a.Model, a.Models)
	fmt.Printf("Storage:   %s\n", cfg.Storage.Backend)
	fmt.Printf("Telegram:  %s\n", mark(cfg.Channels.Telegram.Token != ""))
	webApp := cfg.Gateway.WebAppURL
	if webApp == "" {
		webApp = "(not set, /time disabled)"
	}
	fmt.Printf("HTTP:      %s:%d, web app %s\n", cfg.Gateway.Host, cfg.Gateway.Port, webApp)
	fmt.Printf("Reminders: enabled=%v short=%s-%s long=%s-%s\n\n",
		cfg.Reengagement.Enabled,
		cfg.Reengagement.ShortMin.Std(), cfg.Reengagement.ShortMax.Std(),
		cfg.Reengagement.LongMin.Std(), cfg.Reengagement.LongMax.Std())

	fmt.Println("Providers:")
	for _, spec := range providers.PROVIDERS {
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		if p.APIKey != "" {
			fmt.Printf("  %-20s ✓\n", spec.Label())
		} else {
			fmt.Printf("  %-20s (not set)\n", spec.Label())
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\n%s %v\n", mark(false), err)
	}
	return nil
}
