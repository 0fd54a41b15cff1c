package config

const (
	defaultConfigPath        = "~/.config/lendkeeper/config.toml"
	defaultDataDir           = "~/.local/share/lendkeeper"
	defaultLogDir            = "~/.local/share/lendkeeper/logs"
	databaseFileName         = "lendkeeper.db"
	lockFileName             = "lendkeeper.lock"
	defaultBusyTimeoutMS     = 5000
	defaultBusyRetryAttempts = 5
	defaultLoanDays          = 14
	defaultRevisionLoanDays  = 7
	defaultFurnitureLoanDays = 120
	defaultFineFair          = 50
	defaultFineDamaged       = 500
	defaultFineLost          = 2000
	defaultFinePerDayLate    = 10
	defaultBorrowerMismatch  = MismatchStrict
	defaultBulkWorkers       = 1
	defaultBulkPolicy        = BulkPolicyBestEffort
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Borrower mismatch policies.
const (
	MismatchStrict = "strict"
	MismatchWarn   = "warn"
)

// Bulk failure policies.
const (
	BulkPolicyBestEffort    = "best_effort"
	BulkPolicyStopOnFailure = "stop_on_failure"
)

func defaultBucketEdges() []int {
	return []int{7, 30}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			BusyTimeoutMS:     defaultBusyTimeoutMS,
			BusyRetryAttempts: defaultBusyRetryAttempts,
		},
		Loans: Loans{
			DefaultDays:   defaultLoanDays,
			RevisionDays:  defaultRevisionLoanDays,
			FurnitureDays: defaultFurnitureLoanDays,
		},
		Fines: Fines{
			Fair:       defaultFineFair,
			Damaged:    defaultFineDamaged,
			Lost:       defaultFineLost,
			PerDayLate: defaultFinePerDayLate,
		},
		Ledger: Ledger{
			BorrowerMismatch: defaultBorrowerMismatch,
		},
		Bulk: Bulk{
			Workers: defaultBulkWorkers,
			Policy:  defaultBulkPolicy,
		},
		Overdue: Overdue{
			BucketEdgesDays: defaultBucketEdges(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
