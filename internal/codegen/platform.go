package codegen

import "strings"

// Platform is one of the three supported shell targets, or the sentinel
// Auto requesting keyword-based resolution.
type Platform string

const (
	PowerShell  Platform = "powershell"
	AppleScript Platform = "applescript"
	Bash        Platform = "bash"
	Auto        Platform = "auto"
)

// Extension returns the platform's canonical file extension.
func (p Platform) Extension() string {
	switch p {
	case PowerShell:
		return ".ps1"
	case AppleScript:
		return ".scpt"
	case Bash:
		return ".sh"
	default:
		return ".txt"
	}
}

var platformKeywords = []struct {
	platform Platform
	keywords []string
}{
	{PowerShell, []string{"windows", "active directory", "powershell", "exchange", "office 365"}},
	{AppleScript, []string{"mac", "macos", "finder", "safari", "system preferences"}},
	{Bash, []string{"linux", "unix", "bash", "systemctl", "apt", "yum"}},
}

// namedPattern maps a recognizable automation pattern to its ordered
// platform preference list (spec.md §4.3).
type namedPattern struct {
	name      string
	keywords  []string
	platforms []Platform
}

var namedPatterns = []namedPattern{
	{"file_processing", []string{"file", "copy", "move", "rename", "organize"}, []Platform{PowerShell, Bash, AppleScript}},
	{"system_monitoring", []string{"monitor", "cpu", "memory", "disk usage", "uptime"}, []Platform{Bash, PowerShell}},
	{"backup_automation", []string{"backup", "archive", "snapshot"}, []Platform{Bash, PowerShell}},
	{"email_automation", []string{"email", "mail", "outlook", "smtp"}, []Platform{PowerShell, Bash}},
	{"active_directory", []string{"active directory", "ad user", "domain controller", "group policy"}, []Platform{PowerShell}},
	{"mac_automation", []string{"applescript", "macos app", "automator"}, []Platform{AppleScript}},
	{"linux_admin", []string{"cron", "systemd", "package manager", "iptables"}, []Platform{Bash}},
	{"cross_platform", []string{"cross-platform", "cross platform", "multi-platform"}, []Platform{Bash, PowerShell}},
}

// ResolvePlatform classifies description into a concrete platform when
// platform is Auto, per the precedence order in spec.md §4.3. Any other
// platform value passes through unchanged.
func ResolvePlatform(platform Platform, description string) Platform {
	if platform != Auto {
		return platform
	}
	lower := strings.ToLower(description)

	for _, pk := range platformKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(lower, kw) {
				return pk.platform
			}
		}
	}
	for _, np := range namedPatterns {
		for _, kw := range np.keywords {
			if strings.Contains(lower, kw) {
				return np.platforms[0]
			}
		}
	}
	return Bash
}
