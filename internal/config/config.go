package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	xerrors "BoardWriter/internal/errors"
)

const (
	configPathEnv      = "BOARDWRITER_CONFIG"
	dotEnvFile         = ".env"
	logLevelEnv        = "LOG_LEVEL"
	trelloKeyEnv       = "TRELLO_API_KEY"
	trelloTokenEnv     = "TRELLO_API_TOKEN"
	trelloBoardEnv     = "TRELLO_BOARD_ID"
	trelloTodoEnv      = "TRELLO_TODO_LIST_ID"
	trelloTodoLegacy   = "TRELLO_TOOD_LIST_ID"
	trelloDoneEnv      = "TRELLO_DONE_LIST_ID"
	serpAPIKeyEnv      = "SERPAPI_API_KEY"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	chatGPTModelEnv    = "CHATGPT_MODEL"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	defaultSearchLimit = 3
)

// Config holds every setting of the process. It is built once at startup and
// passed by value; nothing reads the environment after Load returns.
type Config struct {
	Logging       LoggingConfig          `yaml:"logging" toml:"logging"`
	Trello        TrelloConfig           `yaml:"trello" toml:"trello"`
	Search        SearchConfig           `yaml:"search" toml:"search"`
	Research      ResearchConfig         `yaml:"research" toml:"research"`
	ChatGPT       ChatGPTConfig          `yaml:"chatgpt" toml:"chatgpt"`
	Storage       StorageConfig          `yaml:"storage" toml:"storage"`
	Cache         CacheConfig            `yaml:"cache" toml:"cache"`
	Artifacts     ArtifactsConfig        `yaml:"artifacts" toml:"artifacts"`
	Notifications NotificationConfig     `yaml:"notifications" toml:"notifications"`
	Agents        map[string]AgentConfig `yaml:"agents" toml:"agents"`
	Tasks         map[string]TaskConfig  `yaml:"tasks" toml:"tasks"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TrelloConfig carries the board credential and the lists the pipeline works on.
type TrelloConfig struct {
	BaseURL    string `yaml:"baseUrl" toml:"baseUrl"`
	APIKey     string `yaml:"apiKey" toml:"apiKey"`
	APIToken   string `yaml:"apiToken" toml:"apiToken"`
	BoardID    string `yaml:"boardId" toml:"boardId"`
	TodoListID string `yaml:"todoListId" toml:"todoListId"`
	DoneListID string `yaml:"doneListId" toml:"doneListId"`
}

// SearchConfig defines how to reach the web-search API.
type SearchConfig struct {
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Engine     string `yaml:"engine" toml:"engine"`
	APIKey     string `yaml:"apiKey" toml:"apiKey"`
	Site       string `yaml:"site" toml:"site"`
	MaxResults int    `yaml:"maxResults" toml:"maxResults"`
}

// ResearchConfig controls page excerpts pulled from search results.
type ResearchConfig struct {
	PageExcerpts int `yaml:"pageExcerpts" toml:"pageExcerpts"`
	ExcerptChars int `yaml:"excerptChars" toml:"excerptChars"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	Model       string  `yaml:"model" toml:"model"`
	APIKey      string  `yaml:"apiKey" toml:"apiKey"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
}

// StorageConfig selects the run ledger database. An empty driver disables it.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// CacheConfig configures the optional search cache.
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig describes the Redis connection; an empty address disables caching.
type RedisConfig struct {
	Addr       string `yaml:"addr" toml:"addr"`
	Password   string `yaml:"password" toml:"password"`
	DB         int    `yaml:"db" toml:"db"`
	TTLMinutes int    `yaml:"ttlMinutes" toml:"ttlMinutes"`
}

// ArtifactsConfig points at the directory for research/article text files.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" toml:"botToken"`
	ChatID   string `yaml:"chatId" toml:"chatId"`
}

// AgentConfig describes one crew role.
type AgentConfig struct {
	Role      string `yaml:"role" toml:"role"`
	Goal      string `yaml:"goal" toml:"goal"`
	Backstory string `yaml:"backstory" toml:"backstory"`
}

// TaskConfig describes one pipeline stage. Description and ExpectedOutput are
// text/template strings.
type TaskConfig struct {
	Agent          string `yaml:"agent" toml:"agent"`
	Description    string `yaml:"description" toml:"description"`
	ExpectedOutput string `yaml:"expectedOutput" toml:"expectedOutput"`
	OutputFile     string `yaml:"outputFile" toml:"outputFile"`
}

// Load reads .env, the optional config file and environment overrides.
// path takes precedence over BOARDWRITER_CONFIG.
func Load(path string) (Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		fileCfg, set, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg, set)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return xerrors.Wrap(xerrors.CodeConfig, err, "cannot load "+path)
	}
	return nil
}

// explicitNumbers records numeric settings present in a config file, where
// zero is a meaningful value and must still override the default.
type explicitNumbers struct {
	Research struct {
		PageExcerpts *int `yaml:"pageExcerpts" toml:"pageExcerpts"`
	} `yaml:"research" toml:"research"`
	ChatGPT struct {
		Temperature *float64 `yaml:"temperature" toml:"temperature"`
	} `yaml:"chatgpt" toml:"chatgpt"`
	Cache struct {
		Redis struct {
			DB *int `yaml:"db" toml:"db"`
		} `yaml:"redis" toml:"redis"`
	} `yaml:"cache" toml:"cache"`
}

func readFile(path string) (Config, explicitNumbers, error) {
	var set explicitNumbers
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, set, xerrors.Wrap(xerrors.CodeConfig, err, "cannot read config "+path)
	}

	var fileCfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(raw), &fileCfg)
		if err == nil {
			_, err = toml.Decode(string(raw), &set)
		}
	default:
		err = yaml.Unmarshal(raw, &fileCfg)
		if err == nil {
			err = yaml.Unmarshal(raw, &set)
		}
	}
	if err != nil {
		return Config{}, set, xerrors.Wrap(xerrors.CodeConfig, err, "cannot parse config "+path)
	}
	return fileCfg, set, nil
}

func (c *Config) applyEnvOverrides() {
	setFromEnv(&c.Logging.Level, logLevelEnv)

	setFromEnv(&c.Trello.APIKey, trelloKeyEnv)
	setFromEnv(&c.Trello.APIToken, trelloTokenEnv)
	setFromEnv(&c.Trello.BoardID, trelloBoardEnv)
	setFromEnv(&c.Trello.TodoListID, trelloTodoLegacy)
	setFromEnv(&c.Trello.TodoListID, trelloTodoEnv)
	setFromEnv(&c.Trello.DoneListID, trelloDoneEnv)

	setFromEnv(&c.Search.APIKey, serpAPIKeyEnv)

	setFromEnv(&c.ChatGPT.APIKey, openAIAPIKeyEnv)
	setFromEnv(&c.ChatGPT.APIKey, chatGPTAPIKeyEnv)
	setFromEnv(&c.ChatGPT.Model, chatGPTModelEnv)

	setFromEnv(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setFromEnv(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)

	setFromEnv(&c.Storage.Driver, databaseDriverEnv)
	setFromEnv(&c.Storage.DSN, databaseDSNEnv)

	setFromEnv(&c.Cache.Redis.Addr, redisAddrEnv)
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = defaultSearchLimit
	}
	if c.Research.ExcerptChars <= 0 {
		c.Research.ExcerptChars = 1200
	}
	if c.Cache.Redis.TTLMinutes <= 0 {
		c.Cache.Redis.TTLMinutes = 720
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "."
	}
}

func mergeConfig(base, override Config, set explicitNumbers) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	mergeString(&base.Trello.BaseURL, override.Trello.BaseURL)
	mergeString(&base.Trello.APIKey, override.Trello.APIKey)
	mergeString(&base.Trello.APIToken, override.Trello.APIToken)
	mergeString(&base.Trello.BoardID, override.Trello.BoardID)
	mergeString(&base.Trello.TodoListID, override.Trello.TodoListID)
	mergeString(&base.Trello.DoneListID, override.Trello.DoneListID)

	mergeString(&base.Search.Endpoint, override.Search.Endpoint)
	mergeString(&base.Search.Engine, override.Search.Engine)
	mergeString(&base.Search.APIKey, override.Search.APIKey)
	mergeString(&base.Search.Site, override.Search.Site)
	if override.Search.MaxResults > 0 {
		base.Search.MaxResults = override.Search.MaxResults
	}

	if set.Research.PageExcerpts != nil {
		base.Research.PageExcerpts = *set.Research.PageExcerpts
	}
	if override.Research.ExcerptChars > 0 {
		base.Research.ExcerptChars = override.Research.ExcerptChars
	}

	mergeString(&base.ChatGPT.Endpoint, override.ChatGPT.Endpoint)
	mergeString(&base.ChatGPT.Model, override.ChatGPT.Model)
	mergeString(&base.ChatGPT.APIKey, override.ChatGPT.APIKey)
	if set.ChatGPT.Temperature != nil {
		base.ChatGPT.Temperature = *set.ChatGPT.Temperature
	}

	if override.Storage.Driver != "" {
		base.Storage = override.Storage
	}

	mergeString(&base.Cache.Redis.Addr, override.Cache.Redis.Addr)
	mergeString(&base.Cache.Redis.Password, override.Cache.Redis.Password)
	if set.Cache.Redis.DB != nil {
		base.Cache.Redis.DB = *set.Cache.Redis.DB
	}
	if override.Cache.Redis.TTLMinutes > 0 {
		base.Cache.Redis.TTLMinutes = override.Cache.Redis.TTLMinutes
	}

	mergeString(&base.Artifacts.Dir, override.Artifacts.Dir)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)

	for name, agent := range override.Agents {
		current := base.Agents[name]
		mergeString(&current.Role, agent.Role)
		mergeString(&current.Goal, agent.Goal)
		mergeString(&current.Backstory, agent.Backstory)
		base.Agents[name] = current
	}
	for name, task := range override.Tasks {
		current := base.Tasks[name]
		mergeString(&current.Agent, task.Agent)
		mergeString(&current.Description, task.Description)
		mergeString(&current.ExpectedOutput, task.ExpectedOutput)
		mergeString(&current.OutputFile, task.OutputFile)
		base.Tasks[name] = current
	}

	return base
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Requirement names a group of settings a command cannot run without.
type Requirement int

const (
	NeedBoard Requirement = iota
	NeedDoneList
	NeedWriter
	NeedLedger
)

// Validate returns a config error naming the first missing setting.
func (c Config) Validate(reqs ...Requirement) error {
	for _, req := range reqs {
		var missing []string
		switch req {
		case NeedBoard:
			missing = missingValues(
				trelloKeyEnv, c.Trello.APIKey,
				trelloTokenEnv, c.Trello.APIToken,
				trelloBoardEnv, c.Trello.BoardID,
				trelloTodoEnv, c.Trello.TodoListID,
			)
		case NeedDoneList:
			missing = missingValues(trelloDoneEnv, c.Trello.DoneListID)
		case NeedWriter:
			missing = missingValues(chatGPTAPIKeyEnv, c.ChatGPT.APIKey)
		case NeedLedger:
			missing = missingValues(databaseDriverEnv, c.Storage.Driver, databaseDSNEnv, c.Storage.DSN)
		}
		if len(missing) > 0 {
			return xerrors.Newf(xerrors.CodeConfig, "environment variable %s is not set", missing[0])
		}
	}
	return nil
}

func missingValues(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

// String renders the config for debug logs with secrets masked.
func (c Config) String() string {
	return fmt.Sprintf("trello(board=%s todo=%s done=%s key=%s) search(engine=%s key=%s) chatgpt(model=%s key=%s) storage(%s) redis(%s)",
		c.Trello.BoardID, c.Trello.TodoListID, c.Trello.DoneListID, mask(c.Trello.APIKey),
		c.Search.Engine, mask(c.Search.APIKey),
		c.ChatGPT.Model, mask(c.ChatGPT.APIKey),
		c.Storage.Driver, c.Cache.Redis.Addr)
}

func mask(secret string) string {
	if secret == "" {
		return "None"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Trello:  TrelloConfig{BaseURL: "https://api.trello.com/1"},
		Search: SearchConfig{
			Endpoint:   "https://serpapi.com/search.json",
			Engine:     "google",
			MaxResults: defaultSearchLimit,
		},
		Research: ResearchConfig{PageExcerpts: 0, ExcerptChars: 1200},
		ChatGPT: ChatGPTConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			Temperature: 0.4,
		},
		Storage:   StorageConfig{},
		Cache:     CacheConfig{Redis: RedisConfig{TTLMinutes: 720}},
		Artifacts: ArtifactsConfig{Dir: "."},
		Agents: map[string]AgentConfig{
			"researcher": {
				Role:      "AI Research Analyst",
				Goal:      "Gather current, actionable insights about {{.Item.Title}}",
				Backstory: "You track practitioner discussions and separate hype from techniques people actually use.",
			},
			"writer": {
				Role:      "Technical Writer",
				Goal:      "Turn research findings into a concise, actionable article",
				Backstory: "You write short practical articles for engineers who want to apply ideas the same day.",
			},
			"board_updater": {
				Role:      "Board Manager",
				Goal:      "Save finished articles on their cards and move the cards to done",
				Backstory: "You keep the team's board tidy and every card's history complete.",
			},
		},
		Tasks: map[string]TaskConfig{
			"research": {
				Agent:          "researcher",
				Description:    "{{.Item.Title}}",
				ExpectedOutput: "A list of sources with the key takeaways for {{.Item.Title}}",
				OutputFile:     "research.txt",
			},
			"article": {
				Agent: "writer",
				Description: "Write an article about \"{{.Item.Title}}\" using only the research findings below. " +
					"Lead with the most useful technique, keep it under 600 words and cite the sources by link.",
				ExpectedOutput: "A markdown article with a title and actionable sections",
				OutputFile:     "article.txt",
			},
			"publish": {
				Agent:       "board_updater",
				Description: "{{.Article.Markdown}}",
			},
		},
	}
}
