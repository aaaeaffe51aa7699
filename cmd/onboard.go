package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/confidant/internal/config"
	"github.com/crystaldolphin/confidant/internal/persona"
	"github.com/crystaldolphin/confidant/internal/shared/cmdutils"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and the persona workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		_, _ = fmt.Scanln()
		if existing, loadErr := config.Load(cfgPath); loadErr == nil {
			cfg = *existing
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createWorkspaceTemplates(&cfg)

	fmt.Printf("\n%s confidant is ready!\n\n", cmdutils.Logo())
	fmt.Println("Next steps:")
	fmt.Printf("  1. Put TELEGRAM_BOT_TOKEN and GEMINI_API_KEY in .env or %s\n", cfgPath)
	fmt.Printf("  2. Edit the persona under %s\n", cfg.WorkspaceFile(cfg.Agents.Defaults.PromptsDir))
	fmt.Println("  3. Try it locally: confidant chat")
	fmt.Println("  4. Go live: confidant gateway")
	return nil
}

const narratorTemplate = `You are the Narrator of a dialogue between the user and a persona.
You get the user's goal for the conversation and the recent script.
Answer with one short instruction for the persona's next reply that moves the dialogue toward the goal.
`

const welcomeTemplate = `Hi! I'm glad you found me. Send /start and let's talk.
`

func createWorkspaceTemplates(cfg *config.Config) {
	a := cfg.Agents.Defaults
	lib := persona.NewLibrary(persona.Paths{
		PromptsDir:         cfg.WorkspaceFile(a.PromptsDir),
		NarratorPromptsDir: cfg.WorkspaceFile(a.NarratorPromptsDir),
		DatesFile:          cfg.WorkspaceFile(a.KnowledgeFile),
		WelcomeFile:        cfg.WorkspaceFile(a.WelcomeFile),
	})
	// Load creates the example persona prompt and special dates file.
	if err := lib.Load(); err != nil {
		fmt.Printf("  Could not prepare persona files: %v\n", err)
	}

	templates := []struct{ path, content string }{
		{filepath.Join(cfg.WorkspaceFile(a.NarratorPromptsDir), "narrator.txt"), narratorTemplate},
		{cfg.WorkspaceFile(a.WelcomeFile), welcomeTemplate},
	}
	for _, t := range templates {
		if _, err := os.Stat(t.path); os.IsNotExist(err) {
			_ = os.MkdirAll(filepath.Dir(t.path), 0o755)
			_ = os.WriteFile(t.path, []byte(t.content), 0o644)
			fmt.Printf("  Created %s\n", t.path)
		}
	}
}
