package models

// Reserved keys in the local settings key/value store. All other keys are
// non-core and may be used freely by provider-specific configuration.
const (
	SettingBaseRemoteHash = "base_remote_hash"
	SettingLastSyncTime   = "last_sync_time"
	SettingHasSynced      = "has_synced"
	// SettingProviderPassword holds the provider credential, encrypted at
	// rest via internal/crypto — never written or read in plaintext.
	SettingProviderPassword = "sync_provider_password_enc"
)
