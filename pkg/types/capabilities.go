package types

// ModuleCapabilities defines what features a module supports.
type ModuleCapabilities interface {
	SupportsCheckMode() bool
	SupportsDiffMode() bool
	SupportsAsync() bool
}

// ModuleCapability describes the capabilities of a module. Platform is
// one of "linux", "windows", or "all"; modules that only implement
// PlatformAware (pkg/types/types.go) get this derived from Platforms()
// rather than stating it twice.
type ModuleCapability struct {
	CheckMode    bool   `json:"check_mode"`
	DiffMode     bool   `json:"diff_mode"`
	AsyncMode    bool   `json:"async"`
	Platform     string `json:"platform"`
	RequiresRoot bool   `json:"requires_root"`
}

// DefaultCapabilities returns the capabilities a module has unless it
// opts into more (check mode) or declares otherwise (diff, async, root).
func DefaultCapabilities() *ModuleCapability {
	return &ModuleCapability{
		CheckMode:    true,
		DiffMode:     false,
		AsyncMode:    false,
		Platform:     "all",
		RequiresRoot: false,
	}
}

// ModuleWithCapabilities is implemented by modules that declare
// capabilities beyond DefaultCapabilities(), e.g. win_* modules
// reporting Platform: "windows" or async-capable long-running modules.
type ModuleWithCapabilities interface {
	Module
	Capabilities() *ModuleCapability
}