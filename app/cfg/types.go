package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Pipeline configuration
	CycleInterval     int // seconds
	BatchSize         int
	ClassifierRetries int
	ClassifierBackoff int // seconds
	DeliveryRetries   int
	DeliveryBackoff   int // seconds
	RetentionDays     int
	FetchTimeout      int // seconds
	FetchDelay        int // seconds
	FetchWorkers      int
	TruncateLimit     int
	ExtractContent    bool

	// Telegram configuration
	TelegramToken   string
	RequireApproval bool

	// Classifier service configuration
	OpenAIKey      string
	OpenAIModel    string
	OpenAIEndpoint string

	// Source catalog configuration
	SpreadsheetID string
	SourcesRange  string
	KeywordsRange string
	GoogleAPIKey  string
	SourcesFile   string

	// Ops HTTP surface
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
