package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	xerrors "BoardWriter/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, logLevelEnv, trelloKeyEnv, trelloTokenEnv, trelloBoardEnv, trelloTodoEnv,
		trelloTodoLegacy, trelloDoneEnv, serpAPIKeyEnv, chatGPTAPIKeyEnv, openAIAPIKeyEnv,
		chatGPTModelEnv, telegramTokenEnv, telegramChatIDEnv, databaseDriverEnv, databaseDSNEnv, redisAddrEnv,
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trello.BaseURL != "https://api.trello.com/1" {
		t.Fatalf("unexpected trello base url: %s", cfg.Trello.BaseURL)
	}
	if cfg.Search.MaxResults != 3 {
		t.Fatalf("unexpected max results: %d", cfg.Search.MaxResults)
	}
	if len(cfg.Agents) != 3 || len(cfg.Tasks) != 3 {
		t.Fatalf("expected default crew, got %d agents %d tasks", len(cfg.Agents), len(cfg.Tasks))
	}
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "boardwriter.yaml", `
trello:
  boardId: board-from-file
  todoListId: todo-from-file
search:
  site: reddit.com
  maxResults: 5
agents:
  writer:
    goal: Write tersely
tasks:
  publish:
    description: "{{.Article.Body}}"
`)
	t.Setenv(trelloBoardEnv, "board-from-env")
	t.Setenv(chatGPTModelEnv, "gpt-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trello.BoardID != "board-from-env" {
		t.Fatalf("env should override file, got %s", cfg.Trello.BoardID)
	}
	if cfg.Trello.TodoListID != "todo-from-file" {
		t.Fatalf("unexpected todo list: %s", cfg.Trello.TodoListID)
	}
	if cfg.Search.Site != "reddit.com" || cfg.Search.MaxResults != 5 {
		t.Fatalf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.ChatGPT.Model != "gpt-test" {
		t.Fatalf("unexpected model: %s", cfg.ChatGPT.Model)
	}
	writer := cfg.Agents["writer"]
	if writer.Goal != "Write tersely" || writer.Role != "Technical Writer" {
		t.Fatalf("agent fields should merge, got %+v", writer)
	}
	if cfg.Tasks["publish"].Agent != "board_updater" || cfg.Tasks["publish"].Description != "{{.Article.Body}}" {
		t.Fatalf("unexpected publish task: %+v", cfg.Tasks["publish"])
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "boardwriter.toml", `
[trello]
boardId = "b-toml"

[storage]
driver = "sqlite"
dsn = "runs.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trello.BoardID != "b-toml" {
		t.Fatalf("unexpected board id: %s", cfg.Trello.BoardID)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "runs.db" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
}

func TestLoadFileZeroOverridesDefault(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "boardwriter.yaml", `
chatgpt:
  temperature: 0
research:
  pageExcerpts: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ChatGPT.Temperature != 0 {
		t.Fatalf("temperature 0 from file should win over the default, got %v", cfg.ChatGPT.Temperature)
	}

	untouched, err := Load(writeFile(t, "other.yaml", "chatgpt:\n  model: gpt-test\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if untouched.ChatGPT.Temperature != 0.4 {
		t.Fatalf("default temperature should survive an unrelated file, got %v", untouched.ChatGPT.Temperature)
	}
}

func TestLoadTOMLNumericOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "boardwriter.toml", `
[chatgpt]
temperature = 0.0

[cache.redis]
db = 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ChatGPT.Temperature != 0 || cfg.Cache.Redis.DB != 2 {
		t.Fatalf("unexpected numeric settings: temperature=%v db=%d", cfg.ChatGPT.Temperature, cfg.Cache.Redis.DB)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "broken.yaml", "trello: [unterminated")

	_, err := Load(path)
	if !errors.Is(err, xerrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, xerrors.ErrConfig) {
		t.Fatalf("expected config error for missing file, got %v", err)
	}
}

func TestLegacyTodoListVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv(trelloTodoLegacy, "legacy-list")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trello.TodoListID != "legacy-list" {
		t.Fatalf("legacy variable ignored: %q", cfg.Trello.TodoListID)
	}

	t.Setenv(trelloTodoEnv, "new-list")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trello.TodoListID != "new-list" {
		t.Fatalf("new variable should win: %q", cfg.Trello.TodoListID)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Trello.APIKey = "key"
	cfg.Trello.APIToken = "token"
	cfg.Trello.BoardID = "board"

	err := cfg.Validate(NeedBoard)
	if !errors.Is(err, xerrors.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if e, _ := xerrors.From(err); e.Message() != "environment variable TRELLO_TODO_LIST_ID is not set" {
		t.Fatalf("unexpected message: %q", e.Message())
	}

	cfg.Trello.TodoListID = "todo"
	if err := cfg.Validate(NeedBoard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(NeedBoard, NeedWriter); err == nil {
		t.Fatalf("expected missing writer key")
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := defaultConfig()
	cfg.Trello.APIKey = "abcdefgh"
	cfg.ChatGPT.APIKey = "sk-secret"

	s := cfg.String()
	if got := mask("abcdefgh"); got != "abcd****" {
		t.Fatalf("unexpected mask: %s", got)
	}
	for _, secret := range []string{"abcdefgh", "sk-secret"} {
		if strings.Contains(s, secret) {
			t.Fatalf("secret %q leaked in %q", secret, s)
		}
	}
}
