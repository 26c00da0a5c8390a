package config

// Application constants for the sczmerge batch job
const (
	// Application Info
	AppName = "sczmerge"

	// EnvPrefix namespaces every environment override (SCZ_PATHS_INPUT_DIR, ...)
	EnvPrefix = "SCZ"

	// Config file lookup
	DefaultConfigFileName = "sczmerge.yaml"

	// File Paths (relative to the working directory unless absolute)
	DefaultInputDir = "data/processed"
	DefaultLogFile  = "logs/sczmerge.log"

	// Output artifact names
	DefaultCSVName     = "dados_unificados.csv"
	DefaultParquetName = "dados_unificados.parquet"
	DefaultXLSXName    = "dados_unificados.xlsx"

	// Loader defaults
	DefaultExtension        = ".csv"
	DefaultPrimaryEncoding  = "utf-8"
	DefaultFallbackEncoding = "latin1"
	DefaultLoadWorkers      = 1
	MaxLoadWorkers          = 64

	// Load failure policies
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"

	// File permissions
	DirPermissions  = 0755
	FilePermissions = 0644
)

// DefaultMissingTokens are the cell values read as missing
var DefaultMissingTokens = []string{"", "NA", "NaN"}
