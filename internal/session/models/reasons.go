package models

// ResetReason records why a corrective sign-out ran.
type ResetReason string

const (
	ResetReasonUserLogout     ResetReason = "user_logout"
	ResetReasonUserReset      ResetReason = "user_reset"
	ResetReasonProfileMissing ResetReason = "profile_missing"
	ResetReasonProfileLookup  ResetReason = "profile_lookup_error"
	ResetReasonStaleToken     ResetReason = "stale_token"
)

func (r ResetReason) String() string {
	return string(r)
}

// ProfileMissingPolicy decides how an authenticated subject without a role
// record is handled.
type ProfileMissingPolicy string

const (
	// ProfileMissingReset signs the subject out on the first missing lookup.
	ProfileMissingReset ProfileMissingPolicy = "reset"
	// ProfileMissingRetryOnce repeats the lookup once before signing out,
	// for deployments where the profile row is written by an async trigger.
	ProfileMissingRetryOnce ProfileMissingPolicy = "retry-once"
)

func (p ProfileMissingPolicy) IsValid() bool {
	return p == ProfileMissingReset || p == ProfileMissingRetryOnce
}
