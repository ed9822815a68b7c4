package cfg

import "time"

type Cfg struct {
	// Source
	Source     string
	SourceType string
	Timeout    time.Duration
	UserAgent  string

	// Feed
	Output          string
	DealerName      string
	DealerURL       string
	FeedDescription string
	ProductCategory string
	StoreCode       string
	Currency        string
	ImageMode       string
	EscapeImages    bool
	ImageBaseURL    string
	MaxImages       int
	FieldMapFile    string
	VariedPhrasing  bool
	PhraseSeed      uint64

	// Storage
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	// Server
	Serve             bool
	Port              string
	APIAccessKey      string
	SchedulerInterval int
	WorkerCount       int

	// Report
	Report      bool
	ReportLimit int

	// Application metadata
	LogLevel  string
	LogFormat string
	Timezone  string
	Debug     bool
	Version   string
}
