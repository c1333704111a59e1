package auth

import (
	"fmt"
	"strings"
)

// ShowAPIKeyGuide prints where to get an API key for each transform backend
func ShowAPIKeyGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("TRANSFORM BACKEND API KEYS")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("ollama     No key needed. Start the server with 'ollama serve' and")
	fmt.Println("           pull a model, e.g. 'ollama pull llama3.1'.")
	fmt.Println()
	fmt.Println("anthropic  Create a key at https://console.anthropic.com/settings/keys")
	fmt.Println("           and store it with 'rephrase auth login'.")
	fmt.Println()
	fmt.Println("Lookup order: --api-key / config file, system keychain,")
	fmt.Println("encrypted credentials file, REPHRASE_API_KEY, ANTHROPIC_API_KEY.")
	fmt.Println()
	fmt.Println("Keys are never written to the checkpoint or output directories.")
	fmt.Println(strings.Repeat("=", 72))
}
