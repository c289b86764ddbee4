package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-kb/internal/config"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// keyringService names the OS keyring entry secrets are stored under.
const keyringService = "sercha-kb"

// aiValidator pings providers for 'config check'.
var aiValidator driven.AIConfigValidator = ai.NewConfigValidator()

var getenv = os.Getenv

// stdin is shared by prompts so buffered input is not lost between them.
var stdin *bufio.Reader

var configSetKeyring bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in config.toml.

Environment variables named SERCHA_KB_<SECTION>_<KEY> (for example
SERCHA_KB_RETRIEVAL_THRESHOLD) override the file. API keys also fall back
to OPENAI_API_KEY, ANTHROPIC_API_KEY and GEMINI_API_KEY.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every setting and where it comes from",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Stores a value in config.toml. Secrets given without a value are read
from the terminal without echo. With --keyring the secret is stored in the
OS keyring and config.toml only keeps a keyring:// reference.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and ping the providers",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

var configWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive provider setup",
	Long:  `Choose the embedding and generation providers step by step.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigWizard,
}

func init() {
	configSetCmd.Flags().BoolVar(&configSetKeyring, "keyring", false, "store the secret in the OS keyring")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configWizardCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := ensureConfigStore(); err != nil {
		return err
	}

	s := stylesFor(cmd.OutOrStdout())
	cmd.Println(s.Title.Render("Configuration"))
	cmd.Println(s.Muted.Render(configStore.Path()))
	cmd.Println()

	for _, key := range config.Keys() {
		value, source := lookupSetting(key)
		if value != "" && config.IsSecretKey(key) && !config.IsKeyringRef(value) {
			value = maskAPIKey(value)
		}
		if source == "" {
			cmd.Printf("  %-28s %s\n", key, s.Muted.Render("(default)"))
			continue
		}
		cmd.Printf("  %-28s %s %s\n", key, value, s.Muted.Render("("+source+")"))
	}

	if _, err := loadConfig(); err != nil {
		cmd.Println()
		cmd.Printf("%s %s\n", s.Warning.Render("Warning:"), describeError(err))
	} else {
		cmd.Println()
		cmd.Println(s.Success.Render("Configuration is valid."))
	}
	return nil
}

// lookupSetting returns the raw value of key and whether it came from the
// environment or the config file.
func lookupSetting(key string) (value, source string) {
	if v := getenv(config.EnvName(key)); v != "" {
		return v, "env " + config.EnvName(key)
	}
	if v, ok := configStore.Get(key); ok {
		return fmt.Sprint(v), "file"
	}
	return "", ""
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !config.IsKnownKey(key) {
		return fmt.Errorf("unknown key %q, run 'sercha-kb config show' for the list", key)
	}
	if err := ensureConfigStore(); err != nil {
		return err
	}

	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case config.IsSecretKey(key):
		cmd.Printf("Enter %s: ", key)
		value = readPassword()
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}
	if value == "" {
		return fmt.Errorf("empty value for %s", key)
	}

	if configSetKeyring {
		if !config.IsSecretKey(key) {
			return fmt.Errorf("--keyring only applies to secrets, %s is not one", key)
		}
		ref, err := config.StoreSecret(keyringService, key, value)
		if err != nil {
			return err
		}
		value = ref
	}

	var stored any = value
	if !config.IsSecretKey(key) {
		stored = parseValue(value)
	}
	if err := configStore.Set(key, stored); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	shown := value
	if config.IsSecretKey(key) && !config.IsKeyringRef(value) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

// parseValue keeps numbers and booleans typed in config.toml.
func parseValue(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if err := ensureConfigStore(); err != nil {
		return err
	}
	cmd.Println(configStore.Path())
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := stylesFor(cmd.OutOrStdout())

	cmd.Printf("Embedding (%s, %s)... ", cfg.Embedding.Provider.Description(), cfg.Embedding.Model)
	if err := aiValidator.ValidateEmbedding(&cfg.Embedding); err != nil {
		cmd.Println(s.Error.Render("FAILED"))
		return fmt.Errorf("embedding provider check failed: %w", err)
	}
	cmd.Println(s.Success.Render("OK"))

	if cfg.LLM.Provider == "" {
		cmd.Println("Generation: not configured, 'ask' is unavailable.")
		return nil
	}
	cmd.Printf("Generation (%s, %s)... ", cfg.LLM.Provider.Description(), cfg.LLM.Model)
	if err := aiValidator.ValidateLLM(&cfg.LLM); err != nil {
		cmd.Println(s.Error.Render("FAILED"))
		return fmt.Errorf("generation provider check failed: %w", err)
	}
	cmd.Println(s.Success.Render("OK"))
	return nil
}

func runConfigWizard(cmd *cobra.Command, _ []string) error {
	if err := ensureConfigStore(); err != nil {
		return err
	}
	reader := inputReader()

	cmd.Println("sercha-kb Setup Wizard")
	cmd.Println("======================")
	cmd.Println()

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	embedding := chooseProvider(cmd, reader, domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
	if err := saveProvider(embedding, config.KeyEmbedProvider, config.KeyEmbedModel, config.KeyEmbedAPIKey); err != nil {
		return err
	}
	cmd.Printf("Embedding provider configured: %s (%s)\n\n", embedding.provider.Description(), embedding.model)

	cmd.Println("Step 2: Generation Provider")
	cmd.Println("---------------------------")
	llm := chooseProvider(cmd, reader, domain.AllLLMProviders(), domain.DefaultLLMModels())
	if err := saveProvider(llm, config.KeyLLMProvider, config.KeyLLMModel, config.KeyLLMAPIKey); err != nil {
		return err
	}
	cmd.Printf("Generation provider configured: %s (%s)\n\n", llm.provider.Description(), llm.model)

	cmd.Println("Run 'sercha-kb config check' to test the providers.")
	return nil
}

type providerChoice struct {
	provider domain.AIProvider
	model    string
	apiKey   string
}

func chooseProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) providerChoice {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	choice := providerChoice{provider: providers[idx-1]}

	defaultModel := defaults[choice.provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	choice.model = readLine(reader)
	if choice.model == "" {
		choice.model = defaultModel
	}

	if choice.provider.RequiresAPIKey() {
		cmd.Print("Enter API key (empty to use the environment): ")
		choice.apiKey = readPassword()
		cmd.Println()
	}
	return choice
}

func saveProvider(choice providerChoice, providerKey, modelKey, apiKeyKey string) error {
	if err := configStore.Set(providerKey, choice.provider.String()); err != nil {
		return fmt.Errorf("failed to save %s: %w", providerKey, err)
	}
	if err := configStore.Set(modelKey, choice.model); err != nil {
		return fmt.Errorf("failed to save %s: %w", modelKey, err)
	}
	if choice.apiKey == "" {
		return nil
	}
	if err := configStore.Set(apiKeyKey, choice.apiKey); err != nil {
		return fmt.Errorf("failed to save %s: %w", apiKeyKey, err)
	}
	return nil
}

// Helper functions.

func inputReader() *bufio.Reader {
	if stdin == nil {
		stdin = bufio.NewReader(os.Stdin)
	}
	return stdin
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if stdin == nil && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	return readLine(inputReader())
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
