// Package config defines the context configuration: named log clients,
// reusable searches and the contexts binding them together.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// ErrContextNotFound is a sentinel error allowing callers to detect missing contexts via errors.Is.
var ErrContextNotFound = errors.New("context not found")

// Sentinel errors returned by LoadContextConfig so callers can detect exact
// failure modes using errors.Is().
var (
	ErrConfigParse = errors.New("invalid config content")
	ErrNoContexts  = errors.New("no contexts found in config file")
	ErrNoClients   = errors.New("no clients found in config file")
)

const (
	// EnvConfigPath is the environment variable used to override the config path
	EnvConfigPath = "LOGAI_MCP_CONFIG"

	// DefaultConfigDir is the directory under the user's home where the config
	// file is expected when no explicit path or env var is provided.
	DefaultConfigDir = ".logai-mcp"

	// DefaultConfigFile is the config filename to look for in the default dir.
	DefaultConfigFile = "config.yaml"
)

// Client is the configuration of one named log backend.
type Client struct {
	Type    string `json:"type" yaml:"type"`
	Options ty.MI  `json:"options" yaml:"options"`
}

// SearchContext binds a client to a base search, optionally inheriting from
// named searches.
type SearchContext struct {
	Client        string           `json:"client" yaml:"client"`
	Description   string           `json:"description,omitempty" yaml:"description,omitempty"`
	SearchInherit []string         `json:"searchInherit" yaml:"searchInherit"`
	Search        client.LogSearch `json:"search" yaml:"search"`
}

type Clients map[string]Client

type Searches map[string]client.LogSearch

type Contexts map[string]SearchContext

type ContextConfig struct {
	Clients  `json:"clients" yaml:"clients"`
	Searches `json:"searches" yaml:"searches"`
	Contexts `json:"contexts" yaml:"contexts"`
}

// LoadContextConfig loads the context config from configPath, falling back
// to LOGAI_MCP_CONFIG then ~/.logai-mcp/config.yaml. JSON and YAML are both
// accepted.
func LoadContextConfig(configPath string) (*ContextConfig, error) {
	if strings.TrimSpace(configPath) == "" {
		if envPath := strings.TrimSpace(os.Getenv(EnvConfigPath)); envPath != "" {
			configPath = envPath
		} else if home, err := os.UserHomeDir(); err == nil {
			defaultPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
			if _, err := os.Stat(defaultPath); err == nil {
				configPath = defaultPath
			}
		}
	}

	if strings.TrimSpace(configPath) == "" {
		return nil, fmt.Errorf("config file not found at path: %s", configPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at path: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config ContextConfig
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON %s: %v", ErrConfigParse, configPath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML %s: %v", ErrConfigParse, configPath, err)
		}
	default:
		// Try JSON then YAML as a fallback
		if err := json.Unmarshal(data, &config); err == nil {
			break
		}
		if err := yaml.Unmarshal(data, &config); err == nil {
			break
		}
		return nil, fmt.Errorf("%w: unsupported or invalid config format for file: %s", ErrConfigParse, configPath)
	}

	if len(config.Contexts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContexts, configPath)
	}

	// Ensure the clients map exists and provide a default "local" client
	if config.Clients == nil {
		config.Clients = Clients{}
	}
	if _, ok := config.Clients["local"]; !ok {
		config.Clients["local"] = Client{Type: "local", Options: ty.MI{}}
	}

	if err := validateClients(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateClients performs lightweight validation of configured clients and
// returns a combined error describing any missing required options. This
// helps users detect common config typos (e.g. "option" instead of
// "options") and missing fields such as url/addr.
func validateClients(cc *ContextConfig) error {
	problems := []string{}

	for name, c := range cc.Clients {
		switch strings.ToLower(c.Type) {
		case "loki":
			if c.Options.GetString("url") == "" {
				problems = append(problems, fmt.Sprintf("client '%s' (loki) missing required option 'url'", name))
			}
		case "ssh":
			if c.Options.GetString("addr") == "" {
				problems = append(problems, fmt.Sprintf("client '%s' (ssh) missing required option 'addr'", name))
			}
		case "cloudwatch", "docker", "k8s", "local":
			// all options have working defaults (env credentials, unix
			// socket, kubeconfig), nothing to validate up front.
		default:
			// Unknown types fail later at factory construction.
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid client configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// GetSearchContext resolves a context by id, applies inherited searches, the
// caller-provided overrides and runtime variables, and returns the resolved
// copy. The stored config is never mutated.
func (cc ContextConfig) GetSearchContext(contextId string, inherits []string, logSearch client.LogSearch, runtimeVars map[string]string) (SearchContext, error) {
	if contextId == "" {
		return SearchContext{}, errors.New("contextId is empty, required when using config")
	}

	searchContext, ok := cc.Contexts[contextId]
	if !ok {
		return SearchContext{}, fmt.Errorf("%w: %s", ErrContextNotFound, contextId)
	}

	// Combine inherits from context and the call
	allInherits := append(searchContext.SearchInherit, inherits...)
	for _, inherit := range allInherits {
		inheritSearch, found := cc.Searches[inherit]
		if !found {
			return SearchContext{}, fmt.Errorf("failed to find a search context for %s", inherit)
		}
		searchContext.Search.MergeInto(&inheritSearch)
	}

	// Merge the provided logSearch into the context's search
	searchContext.Search.MergeInto(&logSearch)

	// Build complete variable map: defaults from variable definitions +
	// runtime vars (runtime takes precedence)
	completeVars := make(map[string]string)
	for varName, varDef := range searchContext.Search.Variables {
		if varDef.Default != nil {
			completeVars[varName] = fmt.Sprintf("%v", varDef.Default)
		}
	}
	for k, v := range runtimeVars {
		completeVars[k] = v
	}

	searchContext.Search.Fields = searchContext.Search.Fields.ResolveVariablesWith(completeVars)
	searchContext.Search.FieldsCondition = searchContext.Search.FieldsCondition.ResolveVariablesWith(completeVars)
	searchContext.Search.Options = searchContext.Search.Options.ResolveVariablesWith(completeVars)

	resolveOpt(&searchContext.Search.PrinterOptions.Template, completeVars)
	resolveOpt(&searchContext.Search.PrinterOptions.MessageRegex, completeVars)
	resolveOpt(&searchContext.Search.FieldExtraction.GroupRegex, completeVars)
	resolveOpt(&searchContext.Search.FieldExtraction.KvRegex, completeVars)
	resolveOpt(&searchContext.Search.FieldExtraction.TimestampRegex, completeVars)

	return searchContext, nil
}

func resolveOpt(opt *ty.Opt[string], vars map[string]string) {
	if opt.Set {
		opt.S(ty.ResolveVars(opt.Value, vars))
	}
}

// ContextIds returns the configured context ids, useful for error
// suggestions and the list_contexts tool.
func (cc ContextConfig) ContextIds() []string {
	ids := make([]string, 0, len(cc.Contexts))
	for id := range cc.Contexts {
		ids = append(ids, id)
	}
	return ids
}
