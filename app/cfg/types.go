package cfg

type Cfg struct {
	// Input and state
	FeedsFile string
	DBPath    string

	// Archive output
	OutputDir   string
	ArchiveName string
	Title       string
	Language    string

	// Fetching
	Timeout      int
	WorkerCount  int
	ImageWorkers int
	MaxBodyBytes int64
	UserAgent    string

	// Service mode
	Interval     int
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
