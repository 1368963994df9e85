package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayalabs/aya/internal/config"
	"github.com/ayalabs/aya/internal/gateway"
	"github.com/ayalabs/aya/internal/persona"
	"github.com/ayalabs/aya/internal/policy"
	"github.com/ayalabs/aya/internal/world"
)

// ChatOptions for running the chat loop with custom dependencies
type ChatOptions struct {
	Fetcher world.Fetcher
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "aya",
	Short: "aya - persona companion bot",
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Start the Telegram gateway (channels + scheduled jobs)",
	RunE:  runBot,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Aya in the terminal",
	RunE:  runChat,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config, persona and policies",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aya status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(botCmd, chatCmd, onboardCmd, statusCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !cfg.Telegram.Enabled || cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram is not configured. Run 'aya onboard' or set AYA_TELEGRAM_TOKEN")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

// runChat is the command handler that uses default options
func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

// runChatWithOptions runs the chat loop with injectable dependencies for testing
func runChatWithOptions(opts ChatOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// the terminal session never talks to Telegram
	cfg.Telegram.Enabled = false

	gw, err := gateway.NewWithOptions(cfg, gateway.Options{Fetcher: opts.Fetcher})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	defer gw.Shutdown()

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	ctx := context.Background()
	b := gw.Brain()
	const userID = "local"

	fmt.Fprintln(stdout, "aya chat (type 'exit' to quit, /help for commands)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if strings.HasPrefix(input, "/") {
			command, cmdArgs, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
			if reply, ok := b.HandleCommand(ctx, userID, command, strings.TrimSpace(cmdArgs)); ok {
				fmt.Fprintln(stdout, reply)
				continue
			}
		}

		resp, err := b.Respond(ctx, userID, input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(stdout, resp.Text)
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// materialize the default persona card and policy packs so they can be edited
	if _, err := persona.NewManager(cfg.Persona.Dir); err != nil {
		return fmt.Errorf("write persona defaults: %w", err)
	}
	if err := policy.EnsureDefaults(filepath.Join(cfg.Persona.Dir, "policies")); err != nil {
		return fmt.Errorf("write policy defaults: %w", err)
	}

	fmt.Printf("Persona ready: %s\n", cfg.Persona.Dir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and Telegram token\n", cfgPath)
	fmt.Println("  2. Or set AYA_API_KEY and AYA_TELEGRAM_TOKEN environment variables")
	fmt.Println("  3. Run 'aya chat' to talk locally, 'aya bot' to go live")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("Base URL: %s\n", cfg.Provider.BaseURL)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set (demo mode)")
	}
	fmt.Printf("Telegram: enabled=%v\n", cfg.Telegram.Enabled)
	fmt.Printf("World: %s (%s)\n", cfg.World.City, cfg.World.Timezone)
	fmt.Printf("Persona: %s\n", cfg.Persona.Dir)

	if info, err := os.Stat(cfg.Storage.DBPath); err != nil {
		fmt.Println("Database: not found (run 'aya chat' or 'aya bot' to create)")
	} else {
		fmt.Printf("Database: %s (%d bytes)\n", cfg.Storage.DBPath, info.Size())
	}

	return nil
}
