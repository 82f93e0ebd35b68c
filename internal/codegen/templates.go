package codegen

import "strings"

// TemplateMatchThreshold is the minimum Jaccard overlap score (over
// lowercased word sets) a template's description must reach against the
// request description to be instantiated instead of falling through to the
// basic skeleton (spec.md §4.3).
const TemplateMatchThreshold = 0.3

// Template is a canned script for a recognizable automation pattern.
type Template struct {
	Name        string
	Description string
	Script      string
}

var templates = map[Platform][]Template{
	PowerShell: {
		{
			Name:        "disk_space_report",
			Description: "check disk space usage and report free space on drives",
			Script: `[CmdletBinding()]
param()
try {
    Get-PSDrive -PSProvider FileSystem | Select-Object Name, @{N='FreeGB';E={[math]::Round($_.Free/1GB,2)}}
    Write-Host "Disk space report complete"
} catch {
    Write-Error "Failed to read disk space: $_"
    exit 1
}`,
		},
		{
			Name:        "service_restart",
			Description: "restart a windows service and verify it is running",
			Script: `[CmdletBinding()]
param(
    [Parameter(Mandatory=$true)][string]$ServiceName
)
try {
    Restart-Service -Name $ServiceName -ErrorAction Stop
    Start-Sleep -Seconds 2
    $svc = Get-Service -Name $ServiceName
    Write-Host "Service $ServiceName is now $($svc.Status)"
} catch {
    Write-Error "Failed to restart service: $_"
    exit 1
}`,
		},
	},
	AppleScript: {
		{
			Name:        "finder_cleanup",
			Description: "organize files in a folder by file type using finder",
			Script: `try
    set targetFolder to (path to desktop folder)
    tell application "Finder"
        set theFiles to every file of targetFolder
        repeat with aFile in theFiles
            -- group by kind in this scaffold; refine per caller's request
        end repeat
    end tell
    display notification "Cleanup complete" with title "BK25"
on error errMsg
    display dialog "Error: " & errMsg
end try`,
		},
	},
	Bash: {
		{
			Name:        "system_health_check",
			Description: "monitor cpu memory and disk usage and report system health",
			Script: `#!/bin/bash
set -euo pipefail
echo "CPU load: $(uptime | awk -F'load average:' '{print $2}')"
echo "Memory:"; free -h
echo "Disk usage:"; df -h /
echo "Health check complete"`,
		},
		{
			Name:        "backup_directory",
			Description: "backup a directory to a timestamped archive",
			Script: `#!/bin/bash
set -euo pipefail
SRC="${1:?source directory required}"
DEST="${2:-./backups}"
mkdir -p "$DEST"
STAMP=$(date +%Y%m%d-%H%M%S)
tar -czf "$DEST/backup-$STAMP.tar.gz" -C "$(dirname "$SRC")" "$(basename "$SRC")"
echo "Backup written to $DEST/backup-$STAMP.tar.gz"`,
		},
	},
}

// jaccard computes the Jaccard overlap of the lowercased word sets of a, b.
func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// bestTemplate returns the best-scoring template for platform against
// description, and its score.
func bestTemplate(platform Platform, description string) (Template, float64, bool) {
	candidates := templates[platform]
	var best Template
	bestScore := -1.0
	for _, tmpl := range candidates {
		score := jaccard(tmpl.Description, description)
		if score > bestScore {
			best, bestScore = tmpl, score
		}
	}
	if bestScore < 0 {
		return Template{}, 0, false
	}
	return best, bestScore, true
}

// basicSkeleton synthesizes a minimal scaffold carrying the verbatim
// description as a TODO, used when no template clears the match threshold.
func basicSkeleton(platform Platform, description string) string {
	switch platform {
	case PowerShell:
		return "[CmdletBinding()]\nparam()\ntry {\n    # TODO: " + description + "\n    Write-Host \"Script completed successfully\"\n} catch {\n    Write-Error \"Script failed: $_\"\n    exit 1\n}"
	case AppleScript:
		return "try\n    -- TODO: " + description + "\n    display notification \"Script completed successfully\" with title \"BK25\"\non error errMsg\n    display dialog \"Error: \" & errMsg\nend try"
	default: // bash
		return "#!/bin/bash\nset -euo pipefail\n# TODO: " + description + "\necho \"Script completed successfully\""
	}
}
