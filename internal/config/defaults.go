package config

const (
	defaultDataDir   = "~/.local/share/boardcast/data"
	defaultAudioDir  = "~/.local/share/boardcast/audio"
	defaultUploadDir = "~/.local/share/boardcast/uploads"
	defaultLogDir    = "~/.local/share/boardcast/logs"
	defaultAPIBind   = "127.0.0.1:7512"

	defaultVisionBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel            = "google/gemini-3-flash-preview"
	defaultVisionFallbackModel    = "google/gemini-2.5-flash"
	defaultVisionTimeoutSeconds   = 60
	defaultVisionMaxAttempts      = 3
	defaultVisionRetryBaseSeconds = 2

	defaultSpeechBaseURL        = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultSpeechVoice          = "ja-JP-Neural2-B"
	defaultSpeechTimeoutSeconds = 30

	defaultNotifyTimeoutSeconds = 5

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			AudioDir:  defaultAudioDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Vision: Vision{
			BaseURL:          defaultVisionBaseURL,
			Model:            defaultVisionModel,
			FallbackModel:    defaultVisionFallbackModel,
			TimeoutSeconds:   defaultVisionTimeoutSeconds,
			MaxAttempts:      defaultVisionMaxAttempts,
			RetryBaseSeconds: defaultVisionRetryBaseSeconds,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Voice:          defaultSpeechVoice,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Notify: Notify{
			TimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
