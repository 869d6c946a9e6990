package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
			BusBufferSize:         100,
			ErrorReply:            "❌ Erro ao consultar a IA.",
		},
		Discord: DiscordConfig{
			Token:            "${DISCORD_TOKEN}",
			RegisterCommands: true,
		},
		Trigger: TriggerConfig{
			CommandPrefix:       "!s ",
			EnablePassive:       false,
			PassiveProbability:  0.10,
			HistoryWindow:       10,
			AttributionTemplate: "Usuário %s disse: %s",
		},
		Relay: RelayConfig{
			URL:            "${SHAPES_RELAY_URL}",
			TimeoutSeconds: 30,
		},
		Gemini: GeminiConfig{
			APIKey:         "${GEMINI_API_KEY}",
			Model:          "gemini-pro",
			TimeoutSeconds: 30,
			// two classifier calls per passive reply
			RequestsPerMinute: 30,
			Burst:             4,
		},
		Tools: ToolsConfig{
			Image: ImageToolConfig{
				URL:            "${IMAGE_TOOL_URL}",
				TimeoutSeconds: 120,
			},
			Code: CodeToolConfig{
				MaxFileBytes: 8 << 20,
			},
		},
		Store: StoreConfig{
			DBPath: "~/.shapebot/shapebot.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
