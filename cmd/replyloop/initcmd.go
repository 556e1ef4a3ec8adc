package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// configTemplate is the YAML skeleton written by `replyloop init`.
const configTemplate = `version: "1"

modules:
  store.sqlite: {}

  provider.openai:
    api_key: "${OPENAI_API_KEY}"
    model: "%s"

  source.youtube:
    api_key: "${YOUTUBE_API_KEY}"

  gateway.http:
    bind: "%s"
    auth:
      bearer_token: "${REPLYLOOP_TOKEN}"

jobs:
  - name: youtube
    schedule: "*/5 * * * *"
    handler: youtube.check_comments
    settings:
      auto_reply: %t

  - name: youtube-analysis
    schedule: "0 * * * *"
    handler: youtube.fetch_analysis

  - name: daily-post
    schedule: "0 9 * * *"
    handler: compose.draft
`

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a starter configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			var (
				path      = "replyloop.yaml"
				model     = "gpt-4o-mini"
				bind      = "127.0.0.1:8080"
				autoReply bool
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Config file path").
						Value(&path),
					huh.NewInput().
						Title("OpenAI model").
						Description("Used for replies, drafts and chat").
						Value(&model),
					huh.NewInput().
						Title("Gateway bind address").
						Value(&bind),
					huh.NewConfirm().
						Title("Enable automatic replies?").
						Description("When off, comments are ingested but never answered").
						Value(&autoReply),
				),
			)

			if err := form.Run(); err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, not overwriting", path)
			}

			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}

			content := fmt.Sprintf(configTemplate, model, bind, autoReply)
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Set OPENAI_API_KEY, YOUTUBE_API_KEY and REPLYLOOP_TOKEN, then run: replyloop start -c " + path)
			return nil
		},
	}
}
